package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/events"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/model"
)

const (
	hubWriteWait  = 10 * time.Second
	hubPongWait   = 60 * time.Second
	hubPingPeriod = (hubPongWait * 9) / 10
	hubSendBuffer = 16
)

// EventMessage is what a console receives on the event stream. Resources
// lists the screens that should refetch after an invalidation.
type EventMessage struct {
	Kind          string      `json:"kind"`
	Status        int         `json:"status,omitempty"`
	Resources     []string    `json:"resources,omitempty"`
	Tags          []model.Tag `json:"tags,omitempty"`
	RecoveryRoute string      `json:"recovery_route,omitempty"`
	At            time.Time   `json:"at"`
}

type hubClient struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *hubClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub pushes bus events to connected consoles. Invalidations go to every
// console; an unauthorized event goes only to the consoles of the revoked
// session, which are then disconnected.
type Hub struct {
	mu       sync.Mutex
	clients  map[*hubClient]struct{}
	upgrader websocket.Upgrader
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubMetrics counts connected consoles.
func WithHubMetrics(m *observability.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithHubLogger sets the hub logger.
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// NewHub returns a hub that accepts upgrades from allowedOrigins and from
// the console's own origin.
func NewHub(allowedOrigins []string, opts ...HubOption) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	h := &Hub{
		clients: make(map[*hubClient]struct{}),
		logger:  zap.NewNop(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origins[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Attach subscribes the hub to bus. The returned func detaches it.
func (h *Hub) Attach(bus *events.Bus) (cancel func()) {
	return bus.Subscribe(h.dispatch)
}

func (h *Hub) dispatch(evt model.Event) {
	msg := EventMessage{Kind: evt.Kind, Status: evt.Status, At: evt.At}
	switch evt.Kind {
	case model.EventInvalidated:
		msg.Resources = evt.Resources()
		msg.Tags = evt.Tags
		h.broadcast(msg, func(*hubClient) bool { return true }, false)
	case model.EventUnauthorized:
		if evt.SessionID == "" {
			return
		}
		msg.RecoveryRoute = model.LoginRoute
		h.broadcast(msg, func(c *hubClient) bool { return c.sessionID == evt.SessionID }, true)
	}
}

func (h *Hub) broadcast(msg EventMessage, match func(*hubClient) bool, disconnect bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("hub: encode event", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// A console that cannot keep up is dropped and reconnects.
			h.removeLocked(c)
			continue
		}
		if disconnect {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.AddWebsocketClients(1)
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *hubClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	h.metrics.AddWebsocketClients(-1)
}

// Clients returns the number of connected consoles.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every console.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// ServeHTTP upgrades an authenticated request to the event stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		WriteError(w, r, model.NewUnauthorizedError("Sign in to continue"))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		h.logger.Debug("hub: upgrade failed", zap.Error(err))
		return
	}
	c := &hubClient{sessionID: s.ID, conn: conn, send: make(chan []byte, hubSendBuffer)}
	h.add(c)
	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("hub: read failed", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(hubPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
