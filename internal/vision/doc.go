// Package vision turns screen pixels into confidence-scored evidence.
//
// It provides:
//   - Label: the closed set of recognisable UI elements and scene markers
//   - Catalog: one grayscale reference image per label, loaded from disk
//   - Matcher: normalised cross-correlation of a template against a frame
//
// # Architecture
//
//	  screen capture          template files
//	       │                       │
//	       ▼                       ▼
//	   ToGray (gift)          Catalog.LoadDir
//	       │                       │
//	       └──────► Matcher ◄──────┘
//	                   │
//	                   ▼
//	     MatchResult{Confidence, Location, Size}
//
// # Matching
//
// Scores are the zero-mean normalised correlation coefficient (the same
// measure OpenCV calls TM_CCOEFF_NORMED), clamped to [0, 1]. The best
// location is the first maximum in row-major order, so identical inputs
// always produce identical results.
//
// NCCMatcher is pure Go and always available. Building with -tags gocv
// switches NewMatcher to an OpenCV implementation with the same contract.
//
// A template larger than the frame in either dimension yields
// ErrSizeMismatch and a zero-confidence result. Callers treat that as
// "not found" rather than a fault: it usually means the templates were
// cropped at a different screen resolution.
package vision
