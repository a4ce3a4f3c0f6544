package fanout

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/homedash/power-monitor/internal/models"
	"github.com/homedash/power-monitor/pkg/metrics"
)

// sendBufferSize bounds the per-viewer outbound queue. A viewer that
// falls this far behind is dropped rather than allowed to stall the hub.
const sendBufferSize = 32

// Publisher is the best-effort broadcast channel the ingestion pipeline
// publishes to. Publishing must never block and never fail upward.
type Publisher interface {
	Broadcast(event string, data any)
}

// envelope frames every message sent to a viewer with its event name.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// inbound is the shape of messages viewers send to the hub.
type inbound struct {
	Event string `json:"event"`
}

// Hub fans events out to all connected dashboard viewers over
// websockets. Ingestion never waits on a viewer: each client has a
// bounded send queue and slow clients are disconnected.
type Hub struct {
	clients  cmap.ConcurrentMap[string, *client]
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// client is one connected viewer. The mutex guards the send channel
// against a broadcast racing the client's teardown.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues a message without blocking. It reports false when the
// client is gone or its queue is full.
func (c *client) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// close tears the client down exactly once.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

// NewHub creates an empty fan-out hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: cmap.New[*client](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Broadcast publishes a named event to every connected viewer. It is
// fire-and-forget: marshal failures are logged and viewers whose queue
// is full are dropped.
func (h *Hub) Broadcast(event string, data any) {
	message, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to serialize fan-out event")
		return
	}

	for item := range h.clients.IterBuffered() {
		c := item.Val
		if !c.trySend(message) {
			h.logger.Warn().Str("client_id", c.id).Msg("Viewer unreachable or queue full, dropping client")
			h.removeClient(c)
		}
	}
}

// ClientCount returns the number of currently connected viewers.
func (h *Hub) ClientCount() int {
	return h.clients.Count()
}

// HandleWebsocket upgrades an HTTP request to a websocket connection,
// registers the viewer and serves it until disconnect.
func (h *Hub) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.clients.Set(c.id, c)
	metrics.ConnectedViewers.Set(float64(h.clients.Count()))
	h.logger.Info().Str("client_id", c.id).Msg("Viewer connected")

	go h.writePump(c)
	go h.readPump(c)

	h.sendTo(c, models.EventWelcome, models.WelcomeEvent{
		Message:   "Connected to dashboard backend",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ClientID:  c.id,
	})
}

// sendTo queues an event for a single viewer.
func (h *Hub) sendTo(c *client, event string, data any) {
	message, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to serialize fan-out event")
		return
	}

	if !c.trySend(message) {
		h.removeClient(c)
	}
}

// writePump drains the client's send queue onto the wire.
func (h *Hub) writePump(c *client) {
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug().Err(err).Str("client_id", c.id).Msg("Viewer write failed")
			h.removeClient(c)
			return
		}
	}
}

// readPump consumes viewer messages, answering the ping liveness probe
// and unregistering the client on disconnect.
func (h *Hub) readPump(c *client) {
	defer h.removeClient(c)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			h.logger.Info().Str("client_id", c.id).Msg("Viewer disconnected")
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Event == "ping" {
			now := time.Now()
			h.sendTo(c, models.EventPong, models.PongEvent{
				Timestamp:  now.UTC().Format(time.RFC3339),
				ServerTime: now.UnixMilli(),
			})
		}
	}
}

// removeClient unregisters a viewer and releases its connection. Safe
// to call more than once for the same client.
func (h *Hub) removeClient(c *client) {
	h.clients.Remove(c.id)
	c.close()
	metrics.ConnectedViewers.Set(float64(h.clients.Count()))
}
