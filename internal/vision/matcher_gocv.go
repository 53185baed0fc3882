//go:build gocv

package vision

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// NewMatcher returns the OpenCV-backed matcher.
func NewMatcher() Matcher {
	return &CVMatcher{}
}

// CVMatcher runs TM_CCOEFF_NORMED through OpenCV.
type CVMatcher struct{}

// Match implements Matcher. OpenCV cannot be interrupted, so ctx is only
// checked before the call.
func (CVMatcher) Match(ctx context.Context, frame, template *image.Gray) (MatchResult, error) {
	tw, th, err := checkSizes(frame, template)
	if err != nil {
		return MatchResult{Size: image.Pt(tw, th)}, err
	}
	if err := ctx.Err(); err != nil {
		return MatchResult{Size: image.Pt(tw, th)}, err
	}

	img, err := gocv.ImageGrayToMatGray(frame)
	if err != nil {
		return MatchResult{}, fmt.Errorf("converting frame: %w", err)
	}
	defer img.Close()

	tmpl, err := gocv.ImageGrayToMatGray(template)
	if err != nil {
		return MatchResult{}, fmt.Errorf("converting template: %w", err)
	}
	defer tmpl.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(img, tmpl, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

	return MatchResult{
		Confidence: clamp01(float64(maxVal)),
		Location:   maxLoc.Add(frame.Bounds().Min),
		Size:       image.Pt(tw, th),
	}, nil
}
