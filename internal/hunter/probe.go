package hunter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/nerrad567/bosshunter/internal/vision"
)

// FrameSource supplies a fresh grayscale screenshot on every call.
type FrameSource interface {
	Capture() (*image.Gray, error)
}

// Actuator injects input into the game client. Calls are fire-and-forget:
// success means the input was sent, not that the game reacted.
type Actuator interface {
	Click(x, y int) error
	KeyPress(key string) error
}

// Templates resolves labels to reference images.
type Templates interface {
	Get(label vision.Label) (*image.Gray, bool)
	Missing(required []vision.Label) []vision.Label
}

// Probe asks the screen questions and acts on the answers.
//
// Every method is a cancellation point: a cancelled context returns
// "not found" without capturing or actuating.
type Probe struct {
	frames    FrameSource
	matcher   vision.Matcher
	templates Templates
	actuator  Actuator
	threshold func() float64

	// poll is the find-and-click inter-attempt delay; scanEvery the boss scan cadence.
	poll      time.Duration
	scanEvery time.Duration

	sink   EventSink
	logger Logger

	runID string
	state State
}

// Match captures a frame and matches label's template against it.
func (p *Probe) Match(ctx context.Context, label vision.Label) (vision.MatchResult, error) {
	tmpl, ok := p.templates.Get(label)
	if !ok {
		return vision.MatchResult{}, fmt.Errorf("%w: %s", ErrTemplateUnbound, label)
	}
	frame, err := p.frames.Capture()
	if err != nil {
		return vision.MatchResult{}, fmt.Errorf("capturing frame: %w", err)
	}
	return p.matcher.Match(ctx, frame, tmpl)
}

// Present reports whether label is on screen at or above the current
// threshold. It captures a new frame on every call.
func (p *Probe) Present(ctx context.Context, label vision.Label) (vision.MatchResult, bool) {
	if ctx.Err() != nil {
		return vision.MatchResult{}, false
	}

	threshold := p.threshold()
	res, err := p.Match(ctx, label)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// Stopped mid-match.
		case errors.Is(err, vision.ErrSizeMismatch):
			p.logger.Warn("template larger than screen, treating as not found",
				"label", string(label), "error", err)
		default:
			p.logger.Warn("match attempt failed", "label", string(label), "error", err)
		}
		return res, false
	}

	accepted := res.Accepted(threshold)
	c := res.Center()
	p.emit(Event{Kind: EventMatch, Label: label, Confidence: res.Confidence, Accepted: accepted, X: c.X, Y: c.Y})
	return res, accepted
}

// FindAndClick polls for label until it clears the threshold or timeout
// elapses. On success it clicks the match center exactly once and returns
// that point. At least one attempt is made even with a zero timeout.
func (p *Probe) FindAndClick(ctx context.Context, label vision.Label, timeout time.Duration) (image.Point, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if ctx.Err() != nil {
			return image.Point{}, false
		}

		if res, ok := p.Present(ctx, label); ok {
			pt := res.Center()
			if ctx.Err() != nil {
				return image.Point{}, false
			}
			if err := p.actuator.Click(pt.X, pt.Y); err != nil {
				p.logger.Error("click failed", "label", string(label), "x", pt.X, "y", pt.Y, "error", err)
				return image.Point{}, false
			}
			p.emit(Event{Kind: EventClick, Label: label, Confidence: res.Confidence, X: pt.X, Y: pt.Y})
			return pt, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.logger.Debug("control not found", "label", string(label), "timeout", timeout)
			return image.Point{}, false
		}
		if !sleep(ctx, min(p.poll, remaining)) {
			return image.Point{}, false
		}
	}
}

// ScanForBoss watches for the boss indicator for up to duration. It
// returns true on the first detection and never clicks.
func (p *Probe) ScanForBoss(ctx context.Context, duration time.Duration) bool {
	deadline := time.Now().Add(duration)
	for {
		if res, ok := p.Present(ctx, vision.LabelBossIndicator); ok {
			c := res.Center()
			p.emit(Event{Kind: EventDetection, Label: vision.LabelBossIndicator, Confidence: res.Confidence, X: c.X, Y: c.Y})
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		if !sleep(ctx, min(p.scanEvery, remaining)) {
			return false
		}
	}
}

// Press sends a key unless the run has been stopped.
func (p *Probe) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.actuator.KeyPress(key); err != nil {
		return fmt.Errorf("pressing %s: %w", key, err)
	}
	p.emit(Event{Kind: EventKey, Key: key})
	return nil
}

func (p *Probe) emit(e Event) {
	e.Time = time.Now().UTC()
	e.RunID = p.runID
	if e.State == "" {
		e.State = p.state
	}
	p.sink.Publish(e)
}

// sleep waits for d or until ctx is done. It reports whether the wait
// completed without cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
