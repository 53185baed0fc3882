package vision

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

// noiseImage returns a reproducible textured image.
func noiseImage(w, h int, seed uint64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.IntN(256))
	}
	return img
}

// crop copies a region into a fresh image anchored at the origin.
func crop(src *image.Gray, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			dst.SetGray(x, y, src.GrayAt(r.Min.X+x, r.Min.Y+y))
		}
	}
	return dst
}

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// smoothImage returns a reproducible screen-like image: a bilinear
// interpolation of random levels on an 8px grid plus light grain.
func smoothImage(w, h int, seed uint64) *image.Gray {
	const cell = 8
	r := rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
	gw, gh := w/cell+2, h/cell+2
	grid := make([]float64, gw*gh)
	for i := range grid {
		grid[i] = r.Float64() * 230
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := x/cell, y/cell
			fx, fy := float64(x%cell)/cell, float64(y%cell)/cell
			v := grid[y0*gw+x0]*(1-fx)*(1-fy) + grid[y0*gw+x0+1]*fx*(1-fy) +
				grid[(y0+1)*gw+x0]*(1-fx)*fy + grid[(y0+1)*gw+x0+1]*fx*fy
			img.Pix[y*img.Stride+x] = uint8(v + r.Float64()*24)
		}
	}
	return img
}

// ─── Tests ───────────────────────────────────────────────────────────

func TestNCCMatcher_ExactCrop(t *testing.T) {
	frame := noiseImage(120, 80, 1)
	tmpl := crop(frame, image.Rect(37, 21, 37+24, 21+16))

	res, err := NewNCCMatcher().Match(context.Background(), frame, tmpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	if res.Location != image.Pt(37, 21) {
		t.Errorf("Location = %v, want (37,21)", res.Location)
	}
	if res.Size != image.Pt(24, 16) {
		t.Errorf("Size = %v, want (24,16)", res.Size)
	}
	if res.Confidence < 0.999 {
		t.Errorf("Confidence = %v, want ~1", res.Confidence)
	}
	if got := res.Center(); got != image.Pt(49, 29) {
		t.Errorf("Center() = %v, want (49,29)", got)
	}
}

func TestNCCMatcher_BrightnessAndContrastInvariant(t *testing.T) {
	base := noiseImage(60, 40, 2)
	tmpl := crop(base, image.Rect(10, 5, 30, 20))

	// Halve contrast and lift brightness inside the frame.
	frame := image.NewGray(base.Rect)
	for i, v := range base.Pix {
		frame.Pix[i] = v/2 + 60
	}

	res, err := NewNCCMatcher().Match(context.Background(), frame, tmpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if res.Location != image.Pt(10, 5) {
		t.Errorf("Location = %v, want (10,5)", res.Location)
	}
	if res.Confidence < 0.99 {
		t.Errorf("Confidence = %v, want > 0.99", res.Confidence)
	}
}

func TestNCCMatcher_SizeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		frame *image.Gray
		tmpl  *image.Gray
	}{
		{"wider", noiseImage(20, 20, 3), noiseImage(21, 5, 4)},
		{"taller", noiseImage(20, 20, 3), noiseImage(5, 21, 4)},
		{"both", noiseImage(20, 20, 3), noiseImage(30, 30, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewNCCMatcher().Match(context.Background(), tt.frame, tt.tmpl)
			if !errors.Is(err, ErrSizeMismatch) {
				t.Fatalf("Match() error = %v, want ErrSizeMismatch", err)
			}
			if res.Confidence != 0 {
				t.Errorf("Confidence = %v, want 0", res.Confidence)
			}
			for _, threshold := range []float64{0.5, 0.8, 0.95} {
				if res.Accepted(threshold) {
					t.Errorf("size mismatch accepted at %v", threshold)
				}
			}
		})
	}
}

func TestNCCMatcher_EmptyImages(t *testing.T) {
	m := NewNCCMatcher()
	if _, err := m.Match(context.Background(), noiseImage(10, 10, 1), nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("nil template error = %v, want ErrEmptyImage", err)
	}
	if _, err := m.Match(context.Background(), nil, noiseImage(3, 3, 1)); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("nil frame error = %v, want ErrEmptyImage", err)
	}
	empty := image.NewGray(image.Rect(0, 0, 0, 0))
	if _, err := m.Match(context.Background(), noiseImage(10, 10, 1), empty); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty template error = %v, want ErrEmptyImage", err)
	}
}

func TestNCCMatcher_Deterministic(t *testing.T) {
	frame := noiseImage(90, 70, 5)
	tmpl := noiseImage(12, 9, 6) // not cut from the frame: weak, noisy best match

	first, err := (&NCCMatcher{Workers: 1}).Match(context.Background(), frame, tmpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	for _, workers := range []int{1, 2, 3, 8, 64} {
		for i := 0; i < 3; i++ {
			got, err := (&NCCMatcher{Workers: workers}).Match(context.Background(), frame, tmpl)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if got != first {
				t.Fatalf("workers=%d run %d: %+v, want %+v", workers, i, got, first)
			}
		}
	}
}

func TestNCCMatcher_TiesResolveRowMajor(t *testing.T) {
	// Two identical patches; the upper-left one must win.
	frame := uniform(40, 40, 0)
	patch := noiseImage(6, 6, 7)
	for _, at := range []image.Point{{25, 3}, {4, 20}} {
		for y := 0; y < 6; y++ {
			for x := 0; x < 6; x++ {
				frame.SetGray(at.X+x, at.Y+y, patch.GrayAt(x, y))
			}
		}
	}

	res, err := NewNCCMatcher().Match(context.Background(), frame, patch)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if res.Location != image.Pt(25, 3) {
		t.Errorf("Location = %v, want first in row-major order (25,3)", res.Location)
	}
}

func TestNCCMatcher_FlatRegions(t *testing.T) {
	tests := []struct {
		name  string
		frame *image.Gray
		tmpl  *image.Gray
		want  float64
	}{
		{"flat template on flat frame, same level", uniform(10, 10, 80), uniform(3, 3, 80), 1},
		{"flat template on flat frame, other level", uniform(10, 10, 80), uniform(3, 3, 200), 0},
		{"flat template on texture", noiseImage(10, 10, 8), uniform(3, 3, 80), 0},
		{"texture on flat frame", uniform(10, 10, 80), noiseImage(3, 3, 9), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewNCCMatcher().Match(context.Background(), tt.frame, tt.tmpl)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if res.Confidence != tt.want {
				t.Errorf("Confidence = %v, want %v", res.Confidence, tt.want)
			}
		})
	}
}

func TestNCCMatcher_ConfidenceInUnitRange(t *testing.T) {
	// An inverted template correlates at -1 everywhere it fits best; clamp to 0.
	frame := noiseImage(30, 30, 10)
	tmpl := crop(frame, image.Rect(0, 0, 30, 30))
	for i, v := range tmpl.Pix {
		tmpl.Pix[i] = 255 - v
	}

	res, err := NewNCCMatcher().Match(context.Background(), frame, tmpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if res.Confidence < 0 || res.Confidence > 1 || math.IsNaN(res.Confidence) {
		t.Errorf("Confidence = %v, want within [0,1]", res.Confidence)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 for a perfectly inverted template", res.Confidence)
	}
}

func TestNCCMatcher_OffsetFrameBounds(t *testing.T) {
	// A capture of a secondary display starts away from the origin.
	full := noiseImage(100, 60, 11)
	frame := full.SubImage(image.Rect(50, 10, 100, 60)).(*image.Gray)
	tmpl := crop(full, image.Rect(70, 30, 80, 38))

	res, err := NewNCCMatcher().Match(context.Background(), frame, tmpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if res.Location != image.Pt(70, 30) {
		t.Errorf("Location = %v, want desktop coordinates (70,30)", res.Location)
	}
}

func TestMatchResult_AcceptanceMonotonic(t *testing.T) {
	frame := noiseImage(50, 50, 12)
	m := NewNCCMatcher()

	var results []MatchResult
	for seed := uint64(20); seed < 26; seed++ {
		res, err := m.Match(context.Background(), frame, noiseImage(8, 8, seed))
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		results = append(results, res)
	}
	exact, _ := m.Match(context.Background(), frame, crop(frame, image.Rect(5, 5, 13, 13)))
	results = append(results, exact)

	thresholds := []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95}
	for _, r := range results {
		for i := range thresholds {
			for j := i + 1; j < len(thresholds); j++ {
				if r.Accepted(thresholds[j]) && !r.Accepted(thresholds[i]) {
					t.Errorf("confidence %v accepted at %v but not at %v", r.Confidence, thresholds[j], thresholds[i])
				}
			}
		}
	}
}

func TestMatchResult_CenterAndRect(t *testing.T) {
	r := MatchResult{Confidence: 0.9, Location: image.Pt(100, 40), Size: image.Pt(31, 10)}

	if got := r.Center(); got != image.Pt(115, 45) {
		t.Errorf("Center() = %v, want (115,45)", got)
	}
	if got := r.Rect(); got != image.Rect(100, 40, 131, 50) {
		t.Errorf("Rect() = %v", got)
	}
	if !r.Accepted(0.9) {
		t.Error("Accepted(0.9) = false, want true at equal confidence")
	}
	if r.Accepted(0.91) {
		t.Error("Accepted(0.91) = true, want false")
	}
}

func TestCoarseFactor(t *testing.T) {
	tests := []struct {
		name           string
		fw, fh, tw, th int
		want           int
	}{
		{"small frame stays exhaustive", 120, 80, 24, 16, 1},
		{"tiny template cannot shrink", 1920, 1080, 12, 12, 1},
		{"button on full HD", 1920, 1080, 120, 40, 4},
		{"banner on full HD", 1920, 1080, 200, 120, 8},
		{"template fills frame", 1920, 1080, 1920, 1080, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coarseFactor(tt.fw, tt.fh, tt.tw, tt.th); got != tt.want {
				t.Errorf("coarseFactor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNCCMatcher_CoarseSearchAgreesWithExhaustive(t *testing.T) {
	frame := smoothImage(480, 320, 30)
	if coarseFactor(480, 320, 64, 32) == 1 {
		t.Fatal("fixture does not exercise the coarse pass")
	}

	for _, at := range []image.Point{{0, 0}, {201, 117}, {333, 41}, {416, 288}} {
		tmpl := crop(frame, image.Rect(at.X, at.Y, at.X+64, at.Y+32))

		fast, err := NewNCCMatcher().Match(context.Background(), frame, tmpl)
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		slow, err := (&NCCMatcher{Exhaustive: true}).Match(context.Background(), frame, tmpl)
		if err != nil {
			t.Fatalf("exhaustive Match() error = %v", err)
		}
		if fast != slow {
			t.Errorf("crop at %v: coarse %+v, exhaustive %+v", at, fast, slow)
		}
		if fast.Location != at {
			t.Errorf("crop at %v: Location = %v", at, fast.Location)
		}
	}
}

func TestNCCMatcher_FullHDWithinScanInterval(t *testing.T) {
	frame := smoothImage(1920, 1080, 31)
	m := &NCCMatcher{Workers: 1}

	for _, r := range []image.Rectangle{
		image.Rect(701, 333, 701+120, 333+40),
		image.Rect(1203, 577, 1203+200, 577+120),
	} {
		tmpl := crop(frame, r)

		start := time.Now()
		res, err := m.Match(context.Background(), frame, tmpl)
		elapsed := time.Since(start)
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if res.Location != r.Min || res.Confidence < 0.999 {
			t.Errorf("%v: got %+v", r, res)
		}
		if elapsed > time.Second {
			t.Errorf("%v: one match took %v, longer than the default scan interval", r, elapsed)
		}
	}
}

func TestNCCMatcher_Cancelled(t *testing.T) {
	frame := smoothImage(1920, 1080, 32)
	tmpl := crop(frame, image.Rect(900, 500, 1020, 540))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewNCCMatcher().Match(ctx, frame, tmpl); !errors.Is(err, context.Canceled) {
		t.Errorf("pre-cancelled Match() error = %v, want context.Canceled", err)
	}

	// An exhaustive full-HD search runs for seconds; stop it midway.
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := (&NCCMatcher{Workers: 1, Exhaustive: true}).Match(ctx, frame, tmpl)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Match() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Match() returned %v after cancellation was requested at 20ms", elapsed)
	}
}

func BenchmarkNCCMatcher_1080p(b *testing.B) {
	frame := smoothImage(1920, 1080, 1)
	tmpl := crop(frame, image.Rect(600, 300, 720, 340))
	m := NewNCCMatcher()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Match(context.Background(), frame, tmpl); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNCCMatcher_720p(b *testing.B) {
	frame := noiseImage(1280, 720, 1)
	tmpl := crop(frame, image.Rect(600, 300, 648, 324))
	m := NewNCCMatcher()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Match(context.Background(), frame, tmpl); err != nil {
			b.Fatal(err)
		}
	}
}
