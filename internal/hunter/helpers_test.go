package hunter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/bosshunter/internal/infrastructure/config"
	"github.com/nerrad567/bosshunter/internal/vision"
)

// click is one recorded actuator click.
type click struct {
	label vision.Label
	at    image.Point
}

// fakeGame plays every external role at once: it is the frame source,
// the matcher, the template catalog and the actuator. The "screen" is a
// table of label -> confidence; scripts mutate it on clicks and keys.
type fakeGame struct {
	mu sync.Mutex

	frame     *image.Gray
	templates map[vision.Label]*image.Gray
	byPtr     map[*image.Gray]vision.Label

	scores     map[vision.Label]float64
	mismatch   map[vision.Label]bool
	captureErr error
	clickErr   error

	captures int
	matches  map[vision.Label]int
	clicks   []click
	keys     []string

	onClick func(g *fakeGame, l vision.Label)
	onKey   func(g *fakeGame, key string)
}

func newFakeGame() *fakeGame {
	g := &fakeGame{
		frame:     image.NewGray(image.Rect(0, 0, 800, 600)),
		templates: make(map[vision.Label]*image.Gray),
		byPtr:     make(map[*image.Gray]vision.Label),
		scores:    make(map[vision.Label]float64),
		mismatch:  make(map[vision.Label]bool),
		matches:   make(map[vision.Label]int),
	}
	for _, l := range vision.Labels() {
		g.bind(l)
	}
	return g
}

func (g *fakeGame) bind(l vision.Label) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	g.templates[l] = img
	g.byPtr[img] = l
}

func (g *fakeGame) unbind(l vision.Label) {
	delete(g.templates, l)
}

// location gives every label its own spot so click points identify it.
func location(l vision.Label) image.Point {
	for i, known := range vision.Labels() {
		if known == l {
			return image.Pt(40+i*50, 30+i*20)
		}
	}
	return image.Point{}
}

func centerOf(l vision.Label) image.Point {
	return location(l).Add(image.Pt(5, 5))
}

// set changes what the screen shows. Hooks run with mu held and write
// g.scores directly instead.
func (g *fakeGame) set(l vision.Label, confidence float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scores[l] = confidence
}

func (g *fakeGame) Capture() (*image.Gray, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captures++
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return g.frame, nil
}

func (g *fakeGame) Match(_ context.Context, frame, tmpl *image.Gray) (vision.MatchResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.byPtr[tmpl]
	if !ok {
		return vision.MatchResult{}, errors.New("unknown template")
	}
	g.matches[l]++
	if g.mismatch[l] {
		return vision.MatchResult{Size: image.Pt(10, 10)}, fmt.Errorf("%w: scripted", vision.ErrSizeMismatch)
	}
	return vision.MatchResult{Confidence: g.scores[l], Location: location(l), Size: image.Pt(10, 10)}, nil
}

func (g *fakeGame) Get(l vision.Label) (*image.Gray, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	img, ok := g.templates[l]
	return img, ok
}

func (g *fakeGame) Missing(required []vision.Label) []vision.Label {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []vision.Label
	for _, l := range required {
		if _, ok := g.templates[l]; !ok {
			out = append(out, l)
		}
	}
	return out
}

func (g *fakeGame) Click(x, y int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clickErr != nil {
		return g.clickErr
	}
	pt := image.Pt(x, y)
	var label vision.Label
	for _, l := range vision.Labels() {
		if centerOf(l) == pt {
			label = l
		}
	}
	g.clicks = append(g.clicks, click{label: label, at: pt})
	if g.onClick != nil {
		g.onClick(g, label)
	}
	return nil
}

func (g *fakeGame) KeyPress(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys = append(g.keys, key)
	if g.onKey != nil {
		g.onKey(g, key)
	}
	return nil
}

func (g *fakeGame) clickLabels() []vision.Label {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]vision.Label, len(g.clicks))
	for i, c := range g.clicks {
		out[i] = c.label
	}
	return out
}

func (g *fakeGame) clickCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clicks)
}

func (g *fakeGame) pressed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

func (g *fakeGame) captureCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captures
}

// recordingSink keeps every event for later assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// transitions returns the "from->to" pairs seen so far.
func (s *recordingSink) transitions() []string {
	var out []string
	for _, e := range s.snapshot() {
		if e.Kind == EventStateChanged {
			out = append(out, string(e.From)+"->"+string(e.State))
		}
	}
	return out
}

func (s *recordingSink) has(kind EventKind, pred func(Event) bool) bool {
	for _, e := range s.snapshot() {
		if e.Kind == kind && (pred == nil || pred(e)) {
			return true
		}
	}
	return false
}

func (s *recordingSink) last(kind EventKind) (Event, bool) {
	events := s.snapshot()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return Event{}, false
}

func transitionTo(from, to State) func(Event) bool {
	return func(e Event) bool { return e.From == from && e.State == to }
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

func waitDone(t *testing.T, c *Controller, timeout time.Duration) {
	t.Helper()
	done := c.Done()
	if done == nil {
		t.Fatal("controller never started")
	}
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("run did not end within %v", timeout)
	}
}

// fastTiming keeps every wait in the low milliseconds.
func fastTiming() config.TimingConfig {
	return config.TimingConfig{
		PollInterval:      2 * time.Millisecond,
		FindTimeout:       20 * time.Millisecond,
		CharSelectTimeout: 20 * time.Millisecond,
		ScanDuration:      30 * time.Millisecond,
		ScanInterval:      3 * time.Millisecond,
		DetermineAttempts: 3,
		DeterminePause:    time.Millisecond,
		LoginSettle:       time.Millisecond,
		PostLoginWait:     5 * time.Millisecond,
		CharSelectSettle:  time.Millisecond,
		MenuOpenWait:      time.Millisecond,
		PostMenuWait:      time.Millisecond,
		PostSwitchWait:    time.Millisecond,
		PostConfirmWait:   time.Millisecond,
		ChannelReloadWait: 5 * time.Millisecond,
	}
}

func testHunterConfig() config.HunterConfig {
	return config.HunterConfig{
		Threshold:    0.8,
		MenuKey:      "esc",
		CloseMenuKey: "esc",
		Timing:       fastTiming(),
	}
}

// newTestProbe builds a probe over g with a fixed threshold.
func newTestProbe(g *fakeGame, sink EventSink, threshold float64) *Probe {
	if sink == nil {
		sink = noopSink{}
	}
	t := fastTiming()
	return &Probe{
		frames:    g,
		matcher:   g,
		templates: g,
		actuator:  g,
		threshold: func() float64 { return threshold },
		poll:      t.PollInterval,
		scanEvery: t.ScanInterval,
		sink:      sink,
		logger:    noopLogger{},
		runID:     "test-run",
	}
}

func newTestAutomaton(g *fakeGame) *Automaton {
	return &Automaton{
		probe:  newTestProbe(g, nil, 0.8),
		timing: fastTiming(),
		keys:   keys{menu: "esc", closeMenu: "esc"},
		logger: noopLogger{},
	}
}

func newTestController(t *testing.T, g *fakeGame, sink EventSink, repo Repository) *Controller {
	t.Helper()
	c, err := NewController(testHunterConfig(), Deps{
		Frames:    g,
		Matcher:   g,
		Templates: g,
		Actuator:  g,
		Sink:      sink,
		Repo:      repo,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(func() {
		c.Stop()
		if done := c.Done(); done != nil {
			<-done
		}
	})
	return c
}
