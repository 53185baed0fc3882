package hunter

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/bosshunter/internal/vision"
)

func TestAutomaton_Determine(t *testing.T) {
	tests := []struct {
		name   string
		scores map[vision.Label]float64
		want   Result
	}{
		{
			name:   "login scene",
			scores: map[vision.Label]float64{vision.LabelLoginSceneIndicator: 0.91},
			want:   ResultLoginScene,
		},
		{
			name:   "char select scene",
			scores: map[vision.Label]float64{vision.LabelCharSelectSceneIndicator: 0.88},
			want:   ResultCharSelectScene,
		},
		{
			name: "login wins when both match",
			scores: map[vision.Label]float64{
				vision.LabelLoginSceneIndicator:      0.81,
				vision.LabelCharSelectSceneIndicator: 0.99,
			},
			want: ResultLoginScene,
		},
		{
			name:   "below threshold",
			scores: map[vision.Label]float64{vision.LabelLoginSceneIndicator: 0.79},
			want:   ResultUnknownScene,
		},
		{
			name: "nothing recognisable",
			want: ResultUnknownScene,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGame()
			for l, c := range tt.scores {
				g.set(l, c)
			}
			step := newTestAutomaton(g).Step(context.Background(), StateDetermining)
			if step.Result != tt.want {
				t.Errorf("Result = %s, want %s", step.Result, tt.want)
			}
			if g.clickCount() != 0 {
				t.Error("determination clicked")
			}
		})
	}
}

func TestAutomaton_DetermineIsBounded(t *testing.T) {
	g := newFakeGame()
	a := newTestAutomaton(g)

	step := a.Step(context.Background(), StateDetermining)

	if step.Result != ResultUnknownScene {
		t.Fatalf("Result = %s, want unknown_scene", step.Result)
	}
	// Two indicators per attempt.
	if got, want := g.captureCount(), 2*a.timing.DetermineAttempts; got != want {
		t.Errorf("captures = %d, want %d", got, want)
	}
	if next := Next(StateDetermining, step.Result); next != StateLoginScreen {
		t.Errorf("Next = %s, want LOGIN_SCREEN", next)
	}
}

func TestAutomaton_Login(t *testing.T) {
	t.Run("clicks login button", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelLoginSceneIndicator, 0.91)
		g.set(vision.LabelLoginButton, 0.85)

		step := newTestAutomaton(g).Step(context.Background(), StateLoginScreen)
		if step.Result != ResultSucceeded {
			t.Fatalf("Result = %s, want succeeded", step.Result)
		}
		if got := g.clickLabels(); len(got) != 1 || got[0] != vision.LabelLoginButton {
			t.Errorf("clicks = %v, want [login_button]", got)
		}
	})

	t.Run("scene vanished", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelLoginButton, 0.85)

		step := newTestAutomaton(g).Step(context.Background(), StateLoginScreen)
		if step.Result != ResultSceneLost {
			t.Fatalf("Result = %s, want scene_lost", step.Result)
		}
		if g.clickCount() != 0 {
			t.Error("clicked without confirming the scene")
		}
	})

	t.Run("button missing", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelLoginSceneIndicator, 0.91)

		step := newTestAutomaton(g).Step(context.Background(), StateLoginScreen)
		if step.Result != ResultFailed {
			t.Fatalf("Result = %s, want failed", step.Result)
		}
		if !errors.Is(step.Err, ErrSceneFailure) {
			t.Errorf("Err = %v, want ErrSceneFailure", step.Err)
		}
	})
}

func TestAutomaton_CharSelect(t *testing.T) {
	t.Run("clicks character", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelCharSelectSceneIndicator, 0.9)
		g.set(vision.LabelCharSelectButton, 0.9)

		step := newTestAutomaton(g).Step(context.Background(), StateCharSelect)
		if step.Result != ResultSucceeded {
			t.Fatalf("Result = %s, want succeeded", step.Result)
		}
		if got := g.clickLabels(); len(got) != 1 || got[0] != vision.LabelCharSelectButton {
			t.Errorf("clicks = %v", got)
		}
	})

	t.Run("button missing is recoverable", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelCharSelectSceneIndicator, 0.9)

		step := newTestAutomaton(g).Step(context.Background(), StateCharSelect)
		if step.Result != ResultFailed {
			t.Fatalf("Result = %s, want failed", step.Result)
		}
		if step.Err != nil {
			t.Errorf("Err = %v, want nil for a recoverable miss", step.Err)
		}
		if next := Next(StateCharSelect, step.Result); next != StateDetermining {
			t.Errorf("Next = %s, want DETERMINING_STATE", next)
		}
	})

	t.Run("scene vanished", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelCharSelectButton, 0.9)

		if step := newTestAutomaton(g).Step(context.Background(), StateCharSelect); step.Result != ResultSceneLost {
			t.Fatalf("Result = %s, want scene_lost", step.Result)
		}
	})
}

func TestAutomaton_Scan(t *testing.T) {
	g := newFakeGame()
	if step := newTestAutomaton(g).Step(context.Background(), StateInGameScanning); step.Result != ResultFailed {
		t.Errorf("no boss: Result = %s, want failed", step.Result)
	}

	g.set(vision.LabelBossIndicator, 0.9)
	if step := newTestAutomaton(g).Step(context.Background(), StateInGameScanning); step.Result != ResultSucceeded {
		t.Errorf("boss: Result = %s, want succeeded", step.Result)
	}
}

func TestAutomaton_OpenChannelList(t *testing.T) {
	t.Run("channel button found", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelMenuChannelButton, 0.9)

		step := newTestAutomaton(g).Step(context.Background(), StateOpeningChannelList)
		if step.Result != ResultSucceeded {
			t.Fatalf("Result = %s, want succeeded", step.Result)
		}
		if got := g.pressed(); len(got) != 1 || got[0] != "esc" {
			t.Errorf("keys = %v, want one menu key", got)
		}
	})

	t.Run("channel button missing closes menu", func(t *testing.T) {
		g := newFakeGame()

		step := newTestAutomaton(g).Step(context.Background(), StateOpeningChannelList)
		if step.Result != ResultFailed {
			t.Fatalf("Result = %s, want failed", step.Result)
		}
		if got := g.pressed(); len(got) != 2 {
			t.Errorf("keys = %v, want open then close", got)
		}
		if g.clickCount() != 0 {
			t.Error("clicked with no channel button")
		}
	})
}

func TestAutomaton_SwitchChannel(t *testing.T) {
	t.Run("switch and confirm", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelSwitchChannelButton, 0.9)
		g.set(vision.LabelConfirmButton, 0.9)
		a := newTestAutomaton(g)

		step := a.Step(context.Background(), StateSwitchingChannel)
		if step.Result != ResultSucceeded {
			t.Fatalf("Result = %s, want succeeded", step.Result)
		}
		got := g.clickLabels()
		if len(got) != 2 || got[0] != vision.LabelSwitchChannelButton || got[1] != vision.LabelConfirmButton {
			t.Errorf("clicks = %v, want [switch confirm]", got)
		}
		if a.channelSwitches != 1 {
			t.Errorf("channelSwitches = %d, want 1", a.channelSwitches)
		}
	})

	t.Run("switch missing", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelConfirmButton, 0.9)

		step := newTestAutomaton(g).Step(context.Background(), StateSwitchingChannel)
		if step.Result != ResultFailed || !errors.Is(step.Err, ErrSceneFailure) {
			t.Fatalf("step = %+v, want scene failure", step)
		}
		if g.clickCount() != 0 {
			t.Error("clicked confirm without switching")
		}
	})

	t.Run("confirm missing", func(t *testing.T) {
		g := newFakeGame()
		g.set(vision.LabelSwitchChannelButton, 0.9)

		step := newTestAutomaton(g).Step(context.Background(), StateSwitchingChannel)
		if step.Result != ResultFailed || !errors.Is(step.Err, ErrSceneFailure) {
			t.Fatalf("step = %+v, want scene failure", step)
		}
		if got := g.clickLabels(); len(got) != 1 || got[0] != vision.LabelSwitchChannelButton {
			t.Errorf("clicks = %v, want only the switch button", got)
		}
	})
}

func TestAutomaton_CancelledBeforeStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, s := range []State{
		StateDetermining, StateLoginScreen, StateCharSelect,
		StateInGameScanning, StateOpeningChannelList, StateSwitchingChannel,
	} {
		g := newFakeGame()
		for _, l := range vision.Labels() {
			g.set(l, 0.99)
		}

		step := newTestAutomaton(g).Step(ctx, s)
		if step.Result != ResultCancelled {
			t.Errorf("%s: Result = %s, want cancelled", s, step.Result)
		}
		if g.clickCount() != 0 || len(g.pressed()) != 0 {
			t.Errorf("%s: actuated after cancellation", s)
		}
	}
}

func TestAutomaton_UnknownState(t *testing.T) {
	step := newTestAutomaton(newFakeGame()).Step(context.Background(), StateStopped)
	if step.Result != ResultFailed || step.Err == nil {
		t.Errorf("step = %+v, want failure with reason", step)
	}
}
