// Package hunter is the scene-aware automation engine.
//
// It logs into the game, selects a character, watches the screen for the
// boss indicator and, when the boss is absent, hops to the next channel
// and looks again, until the boss shows up or the run is stopped.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                   Controller (controller.go)                 │
//	│  run flag + current state, Start/Stop, threshold             │
//	│        │ one goroutine per run                               │
//	│        ▼                                                     │
//	│  ┌──────────────────┐  Result   ┌──────────────────────┐     │
//	│  │ Automaton        │──────────▶│ Next (state.go)      │     │
//	│  │ (automaton.go)   │◀──────────│ transition table     │     │
//	│  └────────┬─────────┘  State    └──────────────────────┘     │
//	│           ▼                                                  │
//	│  ┌──────────────────────────────────────────────┐            │
//	│  │ Probe (probe.go)                             │            │
//	│  │ Present / FindAndClick / ScanForBoss / Press │            │
//	│  └──┬──────────────┬──────────────┬─────────────┘            │
//	│     ▼              ▼              ▼                          │
//	│  FrameSource    vision.Matcher   Actuator                    │
//	└──────────────────────────────────────────────────────────────┘
//	         │ Events
//	         ▼
//	  LogSink · HubSink (WebSocket) · MQTTSink · MetricsSink (InfluxDB)
//
// # States
//
//	DETERMINING_STATE     login indicator → LOGIN_SCREEN, char-select
//	                      indicator → CHAR_SELECT, neither after N tries →
//	                      LOGIN_SCREEN
//	LOGIN_SCREEN          click login → DETERMINING_STATE; button missing → stop
//	CHAR_SELECT           click character → IN_GAME_SCANNING; missing →
//	                      DETERMINING_STATE
//	IN_GAME_SCANNING      boss seen → stop (success); not seen →
//	                      OPENING_CHANNEL_LIST
//	OPENING_CHANNEL_LIST  menu, channel button → SWITCHING_CHANNEL; missing →
//	                      close menu, IN_GAME_SCANNING
//	SWITCHING_CHANNEL     switch + confirm → DETERMINING_STATE; either missing →
//	                      stop
//
// Scene ambiguity falls back to re-determination. A missing control on a
// scene the automaton is sure about stops the run.
//
// # Cancellation
//
// Stop cancels the run's context. Every poll, wait and actuation checks
// it, so no click or key press is sent after Stop returns, and long
// recovery waits end immediately.
//
// # Usage
//
//	ctrl, err := hunter.NewController(cfg.Hunter, hunter.Deps{
//	    Frames:    screen,
//	    Matcher:   vision.NewMatcher(),
//	    Templates: catalog,
//	    Actuator:  input,
//	    Sink:      hunter.MultiSink{hunter.NewLogSink(log), hunter.NewHubSink(hub)},
//	    Repo:      hunter.NewSQLiteRepository(db.DB),
//	    Logger:    log,
//	})
//	runID, err := ctrl.Start(ctx)
//	...
//	ctrl.Stop()
package hunter
