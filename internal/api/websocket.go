package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/bosshunter/internal/infrastructure/config"
	"github.com/nerrad567/bosshunter/internal/infrastructure/logging"
)

// Message types pushed to WebSocket clients.
const (
	// WSTypeStatus carries a hunter.Status snapshot. It is the first
	// message on every connection.
	WSTypeStatus = "status"

	// WSTypeEvent carries one broadcast payload, tagged with its channel.
	WSTypeEvent = "event"

	// wsSendBufferSize is the per-client outbound queue length.
	wsSendBufferSize = 256
)

// WSMessage is one server-to-client frame.
type WSMessage struct {
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub pushes broadcasts to connected dashboards.
//
// The stream is one-way. A client picks its channels once, with a
// comma-separated ?channels= query when connecting, and no query means
// every channel. Anything a client sends is read and discarded.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// wsClient is one connection. Its send queue is closed by the hub, and
// only while holding the hub's write lock.
type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]struct{}
	dropped  atomic.Uint64
}

func newWSClient(conn *websocket.Conn, channels []string, buffer int) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, buffer), channels: make(map[string]struct{})}
	for _, ch := range channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			c.channels[ch] = struct{}{}
		}
	}
	return c
}

func (c *wsClient) wants(channel string) bool {
	if len(c.channels) == 0 {
		return true
	}
	_, ok := c.channels[channel]
	return ok
}

// upgrader accepts any origin; the CORS middleware has already run.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// add registers c. It reports false once the hub has shut down.
func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected", "clients", len(h.clients))
	return true
}

// remove drops c and closes its queue. Calling it twice is harmless.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("websocket client disconnected", "clients", len(h.clients), "dropped", c.dropped.Load())
}

// Broadcast queues payload for every client listening on channel. A
// client whose queue is full misses the message.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeWS(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding broadcast", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.wants(channel) {
			h.offer(c, data)
		}
	}
}

// deliver queues msg for c alone.
func (h *Hub) deliver(c *wsClient, msg WSMessage) {
	data, err := encodeWS(msg)
	if err != nil {
		h.logger.Error("encoding message", "type", msg.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.offer(c, data)
	}
}

// offer must be called with h.mu held.
func (h *Hub) offer(c *wsClient, data []byte) {
	select {
	case c.send <- data:
	default:
		if n := c.dropped.Add(1); n == 1 {
			h.logger.Warn("websocket client too slow, dropping messages")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func encodeWS(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// handleWebSocket upgrades the request and starts streaming. The client
// gets the current status first, then broadcasts on the channels named
// in ?channels=, e.g. ?channels=hunter.events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	var channels []string
	if q := r.URL.Query().Get("channels"); q != "" {
		channels = strings.Split(q, ",")
	}
	c := newWSClient(conn, channels, wsSendBufferSize)
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	// Queued after add so no transition can slip between the snapshot
	// and the first event.
	s.hub.deliver(c, WSMessage{Type: WSTypeStatus, Payload: s.hunter.Status()})

	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}

// readLoop keeps the read deadline moving and notices disconnects.
func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	wait := time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(wait)) }

	c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	if err := extend(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // the next read reports a dead connection
		extend()
	}
}

// writeLoop drains the client's queue and pings on an interval.
func (h *Hub) writeLoop(c *wsClient) {
	ping := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(h.cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				//nolint:errcheck // closing anyway
				write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
