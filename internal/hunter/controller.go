package hunter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/bosshunter/internal/infrastructure/config"
	"github.com/nerrad567/bosshunter/internal/vision"
)

// Logger defines the logging interface used by the hunter package.
// It is satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// repoTimeout bounds run-history writes from the automation goroutine.
const repoTimeout = 5 * time.Second

// Deps are the collaborators a Controller drives.
type Deps struct {
	Frames    FrameSource
	Matcher   vision.Matcher
	Templates Templates
	Actuator  Actuator

	// Optional.
	Sink   EventSink
	Repo   Repository
	Logger Logger
}

// Status is a read-only snapshot for displays.
type Status struct {
	State     State      `json:"state"`
	Running   bool       `json:"running"`
	Threshold float64    `json:"threshold"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Controller owns the run flag and the current state, and drives the
// automaton on a background goroutine.
//
// Thread Safety: all methods are safe for concurrent use. Only the
// background goroutine advances the state; Stop may force it to STOPPED.
type Controller struct {
	deps     Deps
	cfg      config.HunterConfig
	required []vision.Label

	// threshold holds float64 bits.
	threshold atomic.Uint64

	startMu sync.Mutex // serialises Start

	mu      sync.Mutex
	running bool
	state   State
	current *Run
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController validates cfg and deps and returns an idle controller
// in the STOPPED state.
func NewController(cfg config.HunterConfig, deps Deps) (*Controller, error) {
	switch {
	case deps.Frames == nil:
		return nil, fmt.Errorf("%w: frame source", ErrMissingDependency)
	case deps.Matcher == nil:
		return nil, fmt.Errorf("%w: matcher", ErrMissingDependency)
	case deps.Templates == nil:
		return nil, fmt.Errorf("%w: templates", ErrMissingDependency)
	case deps.Actuator == nil:
		return nil, fmt.Errorf("%w: actuator", ErrMissingDependency)
	}
	if err := validThreshold(cfg.Threshold); err != nil {
		return nil, err
	}
	if cfg.Timing.DetermineAttempts < 1 {
		cfg.Timing.DetermineAttempts = 1
	}
	if deps.Sink == nil {
		deps.Sink = noopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	c := &Controller{
		deps:     deps,
		cfg:      cfg,
		required: vision.Labels(),
		state:    StateStopped,
	}
	c.threshold.Store(math.Float64bits(cfg.Threshold))
	return c, nil
}

// RequiredLabels lists the templates Start insists on.
func (c *Controller) RequiredLabels() []vision.Label {
	out := make([]vision.Label, len(c.required))
	copy(out, c.required)
	return out
}

// Threshold returns the confidence threshold in effect.
func (c *Controller) Threshold() float64 {
	return math.Float64frombits(c.threshold.Load())
}

// SetThreshold changes the confidence threshold. A running automaton
// picks it up at its next match.
func (c *Controller) SetThreshold(t float64) error {
	if err := validThreshold(t); err != nil {
		return err
	}
	c.threshold.Store(math.Float64bits(t))
	c.deps.Logger.Info("confidence threshold changed", "threshold", t)
	return nil
}

func validThreshold(t float64) error {
	if math.IsNaN(t) || t < config.MinThreshold || t > config.MaxThreshold {
		return fmt.Errorf("%w: %v not in [%.2f, %.2f]", ErrInvalidThreshold, t, config.MinThreshold, config.MaxThreshold)
	}
	return nil
}

// State returns the current automaton state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether a run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Status returns a consistent snapshot of state, flag and threshold.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{State: c.state, Running: c.running, Threshold: c.Threshold()}
	if c.current != nil && c.running {
		s.RunID = c.current.ID
		started := c.current.StartedAt
		s.StartedAt = &started
	}
	return s
}

// Done returns a channel closed when the most recent run's goroutine
// has exited. It is nil before the first Start.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Start validates that every required template is bound, then launches
// a run in DETERMINING_STATE and returns its ID.
//
// The run outlives ctx's cancellation (an HTTP request may start it);
// only Stop ends it early. ctx still bounds waiting for a previous run
// to wind down.
func (c *Controller) Start(ctx context.Context) (string, error) {
	if missing := c.deps.Templates.Missing(c.required); len(missing) > 0 {
		return "", fmt.Errorf("%w: %v", ErrTemplateUnbound, missing)
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	prev := c.done
	c.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	run := &Run{
		ID:         GenerateID(),
		StartedAt:  time.Now().UTC(),
		FinalState: StateDetermining,
		Threshold:  c.Threshold(),
	}
	if c.deps.Repo != nil {
		if err := c.deps.Repo.CreateRun(ctx, run); err != nil {
			// History is best effort; the run itself matters more.
			c.deps.Logger.Error("recording run start", "run_id", run.ID, "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.mu.Lock()
	c.running = true
	c.state = StateDetermining
	c.current = run
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.deps.Sink.Publish(Event{Time: run.StartedAt, Kind: EventRunStarted, RunID: run.ID, State: StateDetermining})
	c.deps.Sink.Publish(Event{Time: run.StartedAt, Kind: EventStateChanged, RunID: run.ID, From: StateStopped, State: StateDetermining})

	go c.loop(runCtx, run, done)
	return run.ID, nil
}

// Stop clears the run flag and forces STOPPED. The automaton observes it
// at its next poll or wait. Stopping an idle controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateStopped
	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	c.deps.Logger.Info("stop requested", "run_id", c.current.ID)
}

// loop is the single background goroutine of one run.
func (c *Controller) loop(ctx context.Context, run *Run, done chan struct{}) {
	defer close(done)

	auto := &Automaton{
		probe: &Probe{
			frames:    c.deps.Frames,
			matcher:   c.deps.Matcher,
			templates: c.deps.Templates,
			actuator:  c.deps.Actuator,
			threshold: c.Threshold,
			poll:      c.cfg.Timing.PollInterval,
			scanEvery: c.cfg.Timing.ScanInterval,
			sink:      c.deps.Sink,
			logger:    c.deps.Logger,
			runID:     run.ID,
		},
		timing: c.cfg.Timing,
		keys:   keys{menu: c.cfg.MenuKey, closeMenu: c.cfg.CloseMenuKey},
		logger: c.deps.Logger,
	}

	state := StateDetermining
	outcome := OutcomeCancelled
	var reason error

	for ctx.Err() == nil {
		step := auto.Step(ctx, state)
		next := Next(state, step.Result)

		if next == StateStopped {
			outcome = stopOutcome(state, step.Result)
			if outcome != OutcomeCancelled {
				reason = step.Err
			}
			break
		}
		if !c.advance(run, next) {
			break
		}
		c.deps.Sink.Publish(Event{
			Time: time.Now().UTC(), Kind: EventStateChanged, RunID: run.ID, From: state, State: next,
		})
		state = next
	}

	c.finish(run)

	ended := time.Now().UTC()
	run.EndedAt = &ended
	run.Outcome = outcome
	run.ChannelSwitches = auto.channelSwitches
	run.FinalState = state
	if reason != nil {
		run.Reason = reason.Error()
	}
	if c.deps.Repo != nil {
		rctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
		if err := c.deps.Repo.FinishRun(rctx, run); err != nil && !errors.Is(err, ErrRunNotFound) {
			c.deps.Logger.Error("recording run end", "run_id", run.ID, "error", err)
		}
		cancel()
	}

	c.deps.Sink.Publish(Event{
		Time: ended, Kind: EventRunStopped, RunID: run.ID, State: StateStopped,
		From: state, Outcome: outcome, Message: run.Reason,
		ChannelSwitches: run.ChannelSwitches,
	})
}

// advance moves to next unless the run was stopped meanwhile.
func (c *Controller) advance(run *Run, next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.current != run {
		return false
	}
	c.state = next
	return true
}

// finish ends the run from the inside: terminal success or failure.
func (c *Controller) finish(run *Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != run {
		return
	}
	if c.running {
		c.running = false
		c.cancel()
	}
	c.state = StateStopped
}
