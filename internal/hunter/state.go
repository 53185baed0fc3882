package hunter

// State is the scene the automaton believes the game is showing.
type State string

// The closed set of automaton states.
const (
	StateDetermining        State = "DETERMINING_STATE"
	StateLoginScreen        State = "LOGIN_SCREEN"
	StateCharSelect         State = "CHAR_SELECT"
	StateInGameScanning     State = "IN_GAME_SCANNING"
	StateOpeningChannelList State = "OPENING_CHANNEL_LIST"
	StateSwitchingChannel   State = "SWITCHING_CHANNEL"
	StateStopped            State = "STOPPED"
)

// States lists every state in table order.
func States() []State {
	return []State{
		StateDetermining,
		StateLoginScreen,
		StateCharSelect,
		StateInGameScanning,
		StateOpeningChannelList,
		StateSwitchingChannel,
		StateStopped,
	}
}

// Result is what a state handler observed.
type Result string

const (
	// ResultLoginScene: the login scene indicator was found.
	ResultLoginScene Result = "login_scene"

	// ResultCharSelectScene: the character select indicator was found.
	ResultCharSelectScene Result = "char_select_scene"

	// ResultUnknownScene: no indicator matched within the allowed attempts.
	ResultUnknownScene Result = "unknown_scene"

	// ResultSceneLost: the scene indicator vanished on re-confirmation.
	ResultSceneLost Result = "scene_lost"

	// ResultSucceeded: the state's action completed.
	ResultSucceeded Result = "succeeded"

	// ResultFailed: the state's control or detection was not found.
	ResultFailed Result = "failed"

	// ResultCancelled: the run was stopped while the handler was working.
	ResultCancelled Result = "cancelled"
)

// transitions is the automaton's transition table. A missing entry means
// the combination cannot happen; Next treats it as a stop.
var transitions = map[State]map[Result]State{
	StateDetermining: {
		ResultLoginScene:      StateLoginScreen,
		ResultCharSelectScene: StateCharSelect,
		ResultUnknownScene:    StateLoginScreen,
	},
	StateLoginScreen: {
		ResultSceneLost: StateDetermining,
		ResultSucceeded: StateDetermining,
		ResultFailed:    StateStopped,
	},
	StateCharSelect: {
		ResultSceneLost: StateDetermining,
		ResultSucceeded: StateInGameScanning,
		ResultFailed:    StateDetermining,
	},
	StateInGameScanning: {
		ResultSucceeded: StateStopped,
		ResultFailed:    StateOpeningChannelList,
	},
	StateOpeningChannelList: {
		ResultSucceeded: StateSwitchingChannel,
		ResultFailed:    StateInGameScanning,
	},
	StateSwitchingChannel: {
		ResultSucceeded: StateDetermining,
		ResultFailed:    StateStopped,
	},
}

// Next returns the state that follows from after observing r.
// Cancellation stops from any state; STOPPED is terminal.
func Next(from State, r Result) State {
	if r == ResultCancelled || from == StateStopped {
		return StateStopped
	}
	if to, ok := transitions[from][r]; ok {
		return to
	}
	return StateStopped
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeBossFound Outcome = "boss_found"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// stopOutcome classifies a transition into STOPPED.
func stopOutcome(from State, r Result) Outcome {
	switch {
	case r == ResultCancelled:
		return OutcomeCancelled
	case from == StateInGameScanning && r == ResultSucceeded:
		return OutcomeBossFound
	default:
		return OutcomeFailed
	}
}
