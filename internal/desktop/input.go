package desktop

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"
)

// Input hooks, swapped out in tests.
var (
	moveTo    = func(x, y int) { robotgo.Move(x, y) }
	leftClick = func() { robotgo.Click("left", false) }
	keyTap    = func(key string) error { return robotgo.KeyTap(key) }
)

// Input injects clicks and key presses into the focused window.
type Input struct {
	// settle is the pause between moving the pointer and clicking; some
	// game clients ignore a click that lands in the same frame as the move.
	settle time.Duration
}

// NewInput creates an Input that waits settle between move and click.
func NewInput(settle time.Duration) *Input {
	if settle < 0 {
		settle = 0
	}
	return &Input{settle: settle}
}

// Click moves the pointer to (x, y) in desktop coordinates and clicks
// the left button once.
func (in *Input) Click(x, y int) error {
	moveTo(x, y)
	if in.settle > 0 {
		time.Sleep(in.settle)
	}
	leftClick()
	return nil
}

// KeyPress taps a named key, e.g. "esc" or "enter".
func (in *Input) KeyPress(key string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ErrEmptyKey
	}
	if err := keyTap(key); err != nil {
		return fmt.Errorf("tapping %q: %w", key, err)
	}
	return nil
}
