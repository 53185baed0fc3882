package desktop

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/nerrad567/bosshunter/internal/vision"
)

// Capture hooks, swapped out in tests.
var (
	numDisplays   = screenshot.NumActiveDisplays
	displayBounds = screenshot.GetDisplayBounds
	captureRect   = func(r image.Rectangle) (image.Image, error) { return screenshot.CaptureRect(r) }
)

// Screen is a frame source for one display.
type Screen struct {
	display int
}

// NewScreen returns a Screen for the given display index. Index 0 is the
// primary display.
func NewScreen(display int) (*Screen, error) {
	n := numDisplays()
	if display < 0 || display >= n {
		return nil, fmt.Errorf("%w: index %d, %d active", ErrNoDisplay, display, n)
	}
	return &Screen{display: display}, nil
}

// Bounds returns the display's rectangle in desktop coordinates.
func (s *Screen) Bounds() image.Rectangle {
	return displayBounds(s.display)
}

// Capture grabs the whole display as a grayscale frame. The frame keeps
// desktop coordinates, so match locations on a secondary display can be
// clicked directly.
func (s *Screen) Capture() (*image.Gray, error) {
	bounds := displayBounds(s.display)
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: display %d has no area", ErrNoDisplay, s.display)
	}

	img, err := captureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: display %d: %w", ErrCapture, s.display, err)
	}

	gray := vision.ToGray(img)
	if gray.Rect.Min != bounds.Min {
		// Some backends return the capture at the origin.
		gray.Rect = gray.Rect.Add(bounds.Min.Sub(gray.Rect.Min))
	}
	return gray, nil
}
