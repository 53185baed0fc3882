package vision

import "image"

// MatchResult is the best placement of a template inside a frame.
type MatchResult struct {
	// Confidence is the correlation score in [0, 1].
	Confidence float64

	// Location is the top-left corner of the best match, in frame coordinates.
	Location image.Point

	// Size is the template's width and height.
	Size image.Point
}

// Center returns the actuation point: Location + Size/2.
func (r MatchResult) Center() image.Point {
	return r.Location.Add(r.Size.Div(2))
}

// Rect returns the matched region.
func (r MatchResult) Rect() image.Rectangle {
	return image.Rectangle{Min: r.Location, Max: r.Location.Add(r.Size)}
}

// Accepted reports whether the match clears threshold.
func (r MatchResult) Accepted(threshold float64) bool {
	return r.Confidence >= threshold
}
