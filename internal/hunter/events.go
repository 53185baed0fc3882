package hunter

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/bosshunter/internal/vision"
)

// EventKind classifies an Event.
type EventKind string

const (
	EventRunStarted   EventKind = "run_started"
	EventStateChanged EventKind = "state_changed"
	EventMatch        EventKind = "match"
	EventClick        EventKind = "click"
	EventKey          EventKind = "key"
	EventDetection    EventKind = "detection"
	EventRunStopped   EventKind = "run_stopped"
)

// Event is one timestamped thing that happened during a run.
type Event struct {
	Time       time.Time    `json:"time"`
	Kind       EventKind    `json:"kind"`
	RunID      string       `json:"run_id,omitempty"`
	State      State        `json:"state,omitempty"`
	From       State        `json:"from,omitempty"`
	Label      vision.Label `json:"label,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Accepted   bool         `json:"accepted,omitempty"`
	X          int          `json:"x,omitempty"`
	Y          int          `json:"y,omitempty"`
	Key        string       `json:"key,omitempty"`
	Outcome    Outcome      `json:"outcome,omitempty"`
	Message    string       `json:"message,omitempty"`

	// ChannelSwitches is set on run_stopped only.
	ChannelSwitches int `json:"channel_switches,omitempty"`
}

// String renders the event for human-readable logs.
func (e Event) String() string {
	switch e.Kind {
	case EventRunStarted:
		return fmt.Sprintf("run %s started", e.RunID)
	case EventStateChanged:
		return fmt.Sprintf("state %s -> %s", e.From, e.State)
	case EventMatch:
		verdict := "rejected"
		if e.Accepted {
			verdict = "accepted"
		}
		return fmt.Sprintf("match %s confidence=%.3f at (%d,%d) %s", e.Label, e.Confidence, e.X, e.Y, verdict)
	case EventClick:
		return fmt.Sprintf("click %s at (%d,%d)", e.Label, e.X, e.Y)
	case EventKey:
		return fmt.Sprintf("key %s", e.Key)
	case EventDetection:
		return fmt.Sprintf("boss detected confidence=%.3f at (%d,%d)", e.Confidence, e.X, e.Y)
	case EventRunStopped:
		if e.Message != "" {
			return fmt.Sprintf("run %s stopped: %s (%s)", e.RunID, e.Outcome, e.Message)
		}
		return fmt.Sprintf("run %s stopped: %s", e.RunID, e.Outcome)
	default:
		return string(e.Kind)
	}
}

// EventSink receives run events. Publish must not block for long: it is
// called on the automation goroutine.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Publish implements EventSink.
func (f SinkFunc) Publish(e Event) { f(e) }

// MultiSink fans each event out to every sink in order. Nil entries are skipped.
type MultiSink []EventSink

// Publish implements EventSink.
func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}

type noopSink struct{}

func (noopSink) Publish(Event) {}

// LogSink writes events to a Logger. Per-poll match events go to debug.
type LogSink struct {
	logger Logger
}

// NewLogSink creates a sink that logs every event.
func NewLogSink(logger Logger) *LogSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogSink{logger: logger}
}

// Publish implements EventSink.
func (s *LogSink) Publish(e Event) {
	args := []any{"kind", string(e.Kind), "run_id", e.RunID}
	switch e.Kind {
	case EventMatch:
		s.logger.Debug(e.String(), append(args, "label", string(e.Label), "confidence", e.Confidence)...)
	case EventRunStopped:
		if e.Outcome == OutcomeFailed {
			s.logger.Warn(e.String(), append(args, "outcome", string(e.Outcome))...)
			return
		}
		s.logger.Info(e.String(), append(args, "outcome", string(e.Outcome))...)
	default:
		s.logger.Info(e.String(), args...)
	}
}

// Publisher is the MQTT surface the event publisher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

const (
	// mqttQueueSize bounds events waiting for the broker.
	mqttQueueSize = 64

	// mqttCloseTimeout bounds how long Close waits for the queue to drain.
	mqttCloseTimeout = 5 * time.Second
)

// MQTTSink publishes events and the retained current state over MQTT.
// Match events are skipped; they fire on every poll.
//
// Publishing happens on a goroutine of its own so a slow or unreachable
// broker never stalls the automation. When the queue is full the event
// is dropped and counted.
type MQTTSink struct {
	pub        Publisher
	eventTopic string
	stateTopic string
	logger     Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	done    chan struct{}
	dropped atomic.Uint64
}

// NewMQTTSink creates a sink publishing to eventTopic and stateTopic.
// Call Close to flush and stop it.
func NewMQTTSink(pub Publisher, eventTopic, stateTopic string, logger Logger) *MQTTSink {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &MQTTSink{
		pub:        pub,
		eventTopic: eventTopic,
		stateTopic: stateTopic,
		logger:     logger,
		queue:      make(chan Event, mqttQueueSize),
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

// statePayload is the retained message on the state topic.
type statePayload struct {
	State State     `json:"state"`
	RunID string    `json:"run_id,omitempty"`
	Time  time.Time `json:"time"`
}

// Publish implements EventSink. It never waits on the broker.
func (s *MQTTSink) Publish(e Event) {
	if e.Kind == EventMatch {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("mqtt queue full, dropping event", "kind", string(e.Kind), "dropped", n)
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (s *MQTTSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be sent.
func (s *MQTTSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(mqttCloseTimeout):
		s.logger.Warn("mqtt queue not drained before close", "pending", len(s.queue))
	}
}

func (s *MQTTSink) run() {
	defer close(s.done)
	for e := range s.queue {
		s.send(e)
	}
}

func (s *MQTTSink) send(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshalling event", "error", err)
		return
	}
	if err := s.pub.Publish(s.eventTopic, payload, 0, false); err != nil {
		s.logger.Warn("publishing event", "topic", s.eventTopic, "error", err)
	}

	var state State
	switch e.Kind {
	case EventStateChanged:
		state = e.State
	case EventRunStopped:
		state = StateStopped
	default:
		return
	}
	payload, err = json.Marshal(statePayload{State: state, RunID: e.RunID, Time: e.Time})
	if err != nil {
		s.logger.Error("marshalling state", "error", err)
		return
	}
	if err := s.pub.Publish(s.stateTopic, payload, 1, true); err != nil {
		s.logger.Warn("publishing state", "topic", s.stateTopic, "error", err)
	}
}

// Broadcaster is the WebSocket hub surface.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// ChannelEvents is the WebSocket channel carrying hunter events.
const ChannelEvents = "hunter.events"

// HubSink forwards every event to WebSocket subscribers.
type HubSink struct {
	hub Broadcaster
}

// NewHubSink creates a sink broadcasting on ChannelEvents.
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

// Publish implements EventSink.
func (s *HubSink) Publish(e Event) {
	s.hub.Broadcast(ChannelEvents, e)
}

// MetricsWriter is the time-series surface for run metrics.
type MetricsWriter interface {
	WriteMatch(label string, confidence float64, accepted bool)
	WriteTransition(from, to string)
	WriteRun(outcome string, duration time.Duration, channelSwitches int)
}

// MetricsSink turns events into time-series points.
type MetricsSink struct {
	w       MetricsWriter
	started time.Time
	runID   string
}

// NewMetricsSink creates a sink that writes to w.
func NewMetricsSink(w MetricsWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// Publish implements EventSink. Events arrive from one goroutine per run.
func (s *MetricsSink) Publish(e Event) {
	switch e.Kind {
	case EventRunStarted:
		s.started, s.runID = e.Time, e.RunID
	case EventMatch:
		s.w.WriteMatch(string(e.Label), e.Confidence, e.Accepted)
	case EventStateChanged:
		s.w.WriteTransition(string(e.From), string(e.State))
	case EventRunStopped:
		var d time.Duration
		if e.RunID == s.runID && !s.started.IsZero() {
			d = e.Time.Sub(s.started)
		}
		s.w.WriteRun(string(e.Outcome), d, e.ChannelSwitches)
	}
}
