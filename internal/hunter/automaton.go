package hunter

import (
	"context"
	"fmt"

	"github.com/nerrad567/bosshunter/internal/infrastructure/config"
	"github.com/nerrad567/bosshunter/internal/vision"
)

// Step is what one state handler observed, plus the reason when the
// observation ends the run.
type Step struct {
	Result Result
	Err    error
}

// Automaton runs the per-state entry actions. It holds no current state
// of its own: the caller passes the state in and applies Next to the
// returned result.
type Automaton struct {
	probe  *Probe
	timing config.TimingConfig
	keys   keys
	logger Logger

	// channelSwitches counts confirmed channel changes in this run.
	channelSwitches int
}

type keys struct {
	menu      string
	closeMenu string
}

// Step dispatches to the handler for s.
func (a *Automaton) Step(ctx context.Context, s State) Step {
	a.probe.state = s

	switch s {
	case StateDetermining:
		return a.determine(ctx)
	case StateLoginScreen:
		return a.login(ctx)
	case StateCharSelect:
		return a.charSelect(ctx)
	case StateInGameScanning:
		return a.scan(ctx)
	case StateOpeningChannelList:
		return a.openChannelList(ctx)
	case StateSwitchingChannel:
		return a.switchChannel(ctx)
	default:
		return Step{Result: ResultFailed, Err: fmt.Errorf("no handler for state %s", s)}
	}
}

// determine looks for a scene indicator, a bounded number of times.
func (a *Automaton) determine(ctx context.Context) Step {
	attempts := a.timing.DetermineAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		if _, ok := a.probe.Present(ctx, vision.LabelLoginSceneIndicator); ok {
			return Step{Result: ResultLoginScene}
		}
		if _, ok := a.probe.Present(ctx, vision.LabelCharSelectSceneIndicator); ok {
			return Step{Result: ResultCharSelectScene}
		}
		if ctx.Err() != nil {
			return cancelled()
		}
		if attempt < attempts && !sleep(ctx, a.timing.DeterminePause) {
			return cancelled()
		}
	}

	a.logger.Info("scene not recognised, assuming login screen", "attempts", attempts)
	return Step{Result: ResultUnknownScene}
}

func (a *Automaton) login(ctx context.Context) Step {
	if _, ok := a.probe.Present(ctx, vision.LabelLoginSceneIndicator); !ok {
		return lostOrCancelled(ctx)
	}
	if !sleep(ctx, a.timing.LoginSettle) {
		return cancelled()
	}

	if _, ok := a.probe.FindAndClick(ctx, vision.LabelLoginButton, a.timing.FindTimeout); !ok {
		return failOrCancel(ctx, vision.LabelLoginButton)
	}
	if !sleep(ctx, a.timing.PostLoginWait) {
		return cancelled()
	}
	return Step{Result: ResultSucceeded}
}

func (a *Automaton) charSelect(ctx context.Context) Step {
	if !sleep(ctx, a.timing.CharSelectSettle) {
		return cancelled()
	}
	if _, ok := a.probe.Present(ctx, vision.LabelCharSelectSceneIndicator); !ok {
		return lostOrCancelled(ctx)
	}

	if _, ok := a.probe.FindAndClick(ctx, vision.LabelCharSelectButton, a.timing.CharSelectTimeout); !ok {
		if ctx.Err() != nil {
			return cancelled()
		}
		// Usually the screen is still loading; re-determine instead of stopping.
		return Step{Result: ResultFailed}
	}
	return Step{Result: ResultSucceeded}
}

func (a *Automaton) scan(ctx context.Context) Step {
	if a.probe.ScanForBoss(ctx, a.timing.ScanDuration) {
		return Step{Result: ResultSucceeded}
	}
	if ctx.Err() != nil {
		return cancelled()
	}
	return Step{Result: ResultFailed}
}

func (a *Automaton) openChannelList(ctx context.Context) Step {
	if err := a.probe.Press(ctx, a.keys.menu); err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		a.logger.Warn("menu key failed", "error", err)
	}
	if !sleep(ctx, a.timing.MenuOpenWait) {
		return cancelled()
	}

	if _, ok := a.probe.FindAndClick(ctx, vision.LabelMenuChannelButton, a.timing.FindTimeout); !ok {
		if ctx.Err() != nil {
			return cancelled()
		}
		if err := a.probe.Press(ctx, a.keys.closeMenu); err != nil {
			a.logger.Warn("close menu key failed", "error", err)
		}
		return Step{Result: ResultFailed}
	}
	if !sleep(ctx, a.timing.PostMenuWait) {
		return cancelled()
	}
	return Step{Result: ResultSucceeded}
}

func (a *Automaton) switchChannel(ctx context.Context) Step {
	if _, ok := a.probe.FindAndClick(ctx, vision.LabelSwitchChannelButton, a.timing.FindTimeout); !ok {
		return failOrCancel(ctx, vision.LabelSwitchChannelButton)
	}
	if !sleep(ctx, a.timing.PostSwitchWait) {
		return cancelled()
	}

	if _, ok := a.probe.FindAndClick(ctx, vision.LabelConfirmButton, a.timing.FindTimeout); !ok {
		return failOrCancel(ctx, vision.LabelConfirmButton)
	}
	a.channelSwitches++
	if !sleep(ctx, a.timing.PostConfirmWait) {
		return cancelled()
	}

	a.logger.Info("waiting for channel to load", "wait", a.timing.ChannelReloadWait, "switches", a.channelSwitches)
	if !sleep(ctx, a.timing.ChannelReloadWait) {
		return cancelled()
	}
	return Step{Result: ResultSucceeded}
}

func cancelled() Step {
	return Step{Result: ResultCancelled, Err: context.Canceled}
}

func lostOrCancelled(ctx context.Context) Step {
	if ctx.Err() != nil {
		return cancelled()
	}
	return Step{Result: ResultSceneLost}
}

// failOrCancel reports a missing control as a run-ending scene failure.
func failOrCancel(ctx context.Context, label vision.Label) Step {
	if ctx.Err() != nil {
		return cancelled()
	}
	return Step{Result: ResultFailed, Err: fmt.Errorf("%w: %s", ErrSceneFailure, label)}
}
