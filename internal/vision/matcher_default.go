//go:build !gocv

package vision

// NewMatcher returns the matcher used by the service. Build with -tags gocv
// for the OpenCV implementation.
func NewMatcher() Matcher {
	return NewNCCMatcher()
}
