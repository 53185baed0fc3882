package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"sort"
	"sync"
)

// Matcher finds the best placement of a template within a frame.
//
// Implementations must be deterministic: identical pixels in, identical
// result out. A template larger than the frame returns ErrSizeMismatch.
// A cancelled ctx aborts the match with ctx.Err().
type Matcher interface {
	Match(ctx context.Context, frame, template *image.Gray) (MatchResult, error)
}

// NCCMatcher computes zero-mean normalised cross-correlation in pure Go.
//
// Window sums come from integral images, so only the cross term is
// computed per placement. When scoring every placement would be too
// expensive (a button template against a full-HD screen), the search
// runs on block-summed copies of frame and template first and then
// rescores the strongest coarse candidates at full resolution.
type NCCMatcher struct {
	// Workers bounds parallelism. Zero means GOMAXPROCS.
	Workers int

	// Exhaustive scores every full-resolution placement, never using the
	// coarse pass.
	Exhaustive bool
}

// NewNCCMatcher creates a pure-Go matcher using all available CPUs.
func NewNCCMatcher() *NCCMatcher {
	return &NCCMatcher{}
}

const (
	// flatEpsilon is the variance below which a template counts as uniform.
	flatEpsilon = 1e-9

	// exhaustiveBudget is the largest placements×template-pixels product
	// scored at full resolution without a coarse pass.
	exhaustiveBudget = 1 << 24

	// minCoarseSide keeps a downscaled template recognisable.
	minCoarseSide = 8

	maxCoarseFactor = 16

	// coarseCandidates is how many separated coarse peaks are rescored.
	coarseCandidates = 8
)

// Match implements Matcher.
func (m *NCCMatcher) Match(ctx context.Context, frame, template *image.Gray) (MatchResult, error) {
	tw, th, err := checkSizes(frame, template)
	if err != nil {
		return MatchResult{Size: image.Pt(tw, th)}, err
	}
	if err := ctx.Err(); err != nil {
		return MatchResult{Size: image.Pt(tw, th)}, err
	}

	full := newPlane(frame, 1)
	fullK := newKernel(newPlane(template, 1))

	var loc image.Point
	score := math.Inf(-1)
	searched := false

	if f := coarseFactor(full.w, full.h, tw, th); f > 1 && !m.Exhaustive && !fullK.flat {
		loc, score, searched, err = m.coarseToFine(ctx, frame, template, full, fullK, f)
		if err != nil {
			return MatchResult{Size: image.Pt(tw, th)}, err
		}
	}
	if !searched {
		scores, outW, _, err := m.scoreMap(ctx, full, fullK)
		if err != nil {
			return MatchResult{Size: image.Pt(tw, th)}, err
		}
		i := argmax(scores)
		loc, score = image.Pt(i%outW, i/outW), scores[i]
	}

	return MatchResult{
		Confidence: clamp01(score),
		Location:   loc.Add(frame.Bounds().Min),
		Size:       image.Pt(tw, th),
	}, nil
}

// coarseToFine scores block-summed copies, then rescores the best
// separated coarse peaks within one block of their position. It reports
// false when the downscaled template carries no contrast.
func (m *NCCMatcher) coarseToFine(ctx context.Context, frame, template *image.Gray, full *plane, fullK *kernel, f int) (image.Point, float64, bool, error) {
	ck := newKernel(newPlane(template, f))
	if ck.flat {
		return image.Point{}, 0, false, nil
	}
	coarse := newPlane(frame, f)

	scores, cw, ch, err := m.scoreMap(ctx, coarse, ck)
	if err != nil {
		return image.Point{}, 0, false, err
	}

	outW, outH := full.w-fullK.w+1, full.h-fullK.h+1
	best := math.Inf(-1)
	var loc image.Point
	for _, c := range peaks(scores, cw, coarseCandidates) {
		x0, x1 := refineSpan(c.X, cw, f, outW)
		y0, y1 := refineSpan(c.Y, ch, f, outH)
		for y := y0; y <= y1; y++ {
			if err := ctx.Err(); err != nil {
				return image.Point{}, 0, false, err
			}
			for x := x0; x <= x1; x++ {
				s := full.score(fullK, x, y)
				if s > best || (s == best && (y < loc.Y || (y == loc.Y && x < loc.X))) {
					best, loc = s, image.Pt(x, y)
				}
			}
		}
	}
	return loc, best, true, nil
}

// scoreMap scores every placement of k in p, rows split across workers.
func (m *NCCMatcher) scoreMap(ctx context.Context, p *plane, k *kernel) ([]float64, int, int, error) {
	outW, outH := p.w-k.w+1, p.h-k.h+1
	scores := make([]float64, outW*outH)

	workers := m.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, outH)

	rows := make(chan int, outH)
	for y := 0; y < outH; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				if ctx.Err() != nil {
					return
				}
				row := scores[y*outW : (y+1)*outW]
				for x := range row {
					row[x] = p.score(k, x, y)
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, 0, err
	}
	return scores, outW, outH, nil
}

// coarseFactor picks the power-of-two block size for the coarse pass, or
// 1 when an exhaustive search is affordable or the template is too small
// to shrink.
func coarseFactor(fw, fh, tw, th int) int {
	cost := float64(fw-tw+1) * float64(fh-th+1) * float64(tw*th)
	f := 1
	for f < maxCoarseFactor && cost > exhaustiveBudget {
		next := f * 2
		if tw/next < minCoarseSide || th/next < minCoarseSide {
			break
		}
		f = next
		cost /= 16
	}
	return f
}

// refineSpan maps coarse position c to the inclusive range of full
// placements it may stand for. The last coarse position also covers the
// columns or rows dropped by block summing.
func refineSpan(c, coarseOut, f, out int) (int, int) {
	lo, hi := c*f-f, c*f+f
	if c == coarseOut-1 {
		hi = out - 1
	}
	return max(lo, 0), min(hi, out-1)
}

// peaks returns up to n of the highest-scoring positions, skipping any
// that touch an already chosen one. Order is by score, then row-major.
func peaks(scores []float64, w, n int) []image.Point {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		sa, sb := scores[idx[a]], scores[idx[b]]
		if sa != sb {
			return sa > sb
		}
		return idx[a] < idx[b]
	})

	var out []image.Point
	for _, i := range idx {
		p := image.Pt(i%w, i/w)
		near := false
		for _, q := range out {
			if abs(p.X-q.X) <= 1 && abs(p.Y-q.Y) <= 1 {
				near = true
				break
			}
		}
		if near {
			continue
		}
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out
}

// argmax returns the first index holding the largest score.
func argmax(scores []float64) int {
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best
}

// plane is a block-summed grayscale image with integral tables. With
// scale 1 it is the image itself.
type plane struct {
	w, h  int
	scale int // pixels per block
	pix   []float64
	sum   []int64 // (w+1)×(h+1), leading zero row and column
	sq    []int64
}

func newPlane(img *image.Gray, f int) *plane {
	b := img.Bounds()
	w, h := b.Dx()/f, b.Dy()/f
	blocks := make([]int64, w*h)
	for y := 0; y < h*f; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		out := blocks[(y/f)*w : (y/f+1)*w]
		for x := 0; x < w*f; x++ {
			out[x/f] += int64(row[x])
		}
	}

	p := &plane{
		w: w, h: h, scale: f * f,
		pix: make([]float64, w*h),
		sum: make([]int64, (w+1)*(h+1)),
		sq:  make([]int64, (w+1)*(h+1)),
	}
	stride := w + 1
	for y := 0; y < h; y++ {
		var rs, rq int64
		for x := 0; x < w; x++ {
			v := blocks[y*w+x]
			p.pix[y*w+x] = float64(v)
			rs += v
			rq += v * v
			i := (y+1)*stride + x + 1
			p.sum[i] = p.sum[i-stride] + rs
			p.sq[i] = p.sq[i-stride] + rq
		}
	}
	return p
}

func (p *plane) window(table []int64, x, y, w, h int) int64 {
	stride := p.w + 1
	return table[(y+h)*stride+x+w] - table[y*stride+x+w] - table[(y+h)*stride+x] + table[y*stride+x]
}

// score is the correlation coefficient of k placed at (x, y). Flat
// windows score 1 against a flat template of the same level, else 0.
func (p *plane) score(k *kernel, x, y int) float64 {
	n := float64(k.w * k.h)
	s := p.window(p.sum, x, y, k.w, k.h)
	s2 := p.window(p.sq, x, y, k.w, k.h)
	// n*Σf² - (Σf)² is exact in integers; zero means a flat window.
	varNum := int64(k.w*k.h)*s2 - s*s

	if k.flat || varNum == 0 {
		if k.flat && varNum == 0 && math.Abs(float64(s)/n-k.mean) < 0.5*float64(p.scale) {
			return 1
		}
		return 0
	}

	var cross float64
	for j := 0; j < k.h; j++ {
		row := p.pix[(y+j)*p.w+x:]
		for i, tv := range k.z[j*k.w : (j+1)*k.w] {
			cross += tv * row[i]
		}
	}
	return cross / (k.norm * math.Sqrt(float64(varNum)/n))
}

// kernel is a zero-mean template.
type kernel struct {
	w, h int
	z    []float64
	mean float64
	norm float64
	flat bool
}

func newKernel(p *plane) *kernel {
	n := float64(p.w * p.h)
	var total float64
	for _, v := range p.pix {
		total += v
	}
	k := &kernel{w: p.w, h: p.h, z: make([]float64, len(p.pix)), mean: total / n}

	var sq float64
	for i, v := range p.pix {
		d := v - k.mean
		k.z[i] = d
		sq += d * d
	}
	k.norm = math.Sqrt(sq)
	k.flat = sq < flatEpsilon
	return k
}

// checkSizes validates both images and returns the template dimensions.
func checkSizes(frame, template *image.Gray) (int, int, error) {
	if template == nil || template.Bounds().Empty() {
		return 0, 0, fmt.Errorf("%w: template", ErrEmptyImage)
	}
	tw, th := template.Bounds().Dx(), template.Bounds().Dy()
	if frame == nil || frame.Bounds().Empty() {
		return tw, th, fmt.Errorf("%w: frame", ErrEmptyImage)
	}
	fw, fh := frame.Bounds().Dx(), frame.Bounds().Dy()
	if tw > fw || th > fh {
		return tw, th, fmt.Errorf("%w: template %dx%d, frame %dx%d", ErrSizeMismatch, tw, th, fw, fh)
	}
	return tw, th, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
