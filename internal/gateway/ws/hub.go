// Package ws implements a WebSocket event feed for invocation activity.
// Clients connect, optionally authenticate, and receive one JSON event
// per completed script invocation. The feed is strictly one-way; client
// messages are read and discarded to service control frames.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Event is one invocation broadcast to connected clients.
type Event struct {
	Type       string    `json:"type"` // Always "invocation".
	Tool       string    `json:"tool,omitempty"`
	Success    bool      `json:"success"`
	ExitCode   int       `json:"exit_code"`
	TimedOut   bool      `json:"timed_out,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
	Denied     bool      `json:"denied,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// subscriber buffer size. Slow clients drop events rather than
// backpressuring the runner pipeline.
const subscriberBuffer = 16

// Hub fans invocation events out to connected WebSocket clients.
type Hub struct {
	logger *slog.Logger
	keys   map[string]string // API key to client ID. Empty = no auth on the feed.

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates a Hub. keys, when non-empty, are the accepted API keys;
// clients present one as a Bearer token or ?token= query parameter.
func NewHub(keys map[string]string, logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		keys:   keys,
		subs:   make(map[chan Event]struct{}),
	}
}

// Publish broadcasts an event to all connected clients. Never blocks:
// clients whose buffers are full miss the event.
func (h *Hub) Publish(ev Event) {
	if ev.Type == "" {
		ev.Type = "invocation"
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *Hub) authorized(token string) bool {
	if token == "" {
		return false
	}
	for key := range h.keys {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Handler returns an http.Handler that upgrades connections to WebSocket.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.handleUpgrade)
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if len(h.keys) > 0 {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
			if len(token) > 7 && token[:7] == "Bearer " {
				token = token[7:]
			}
		}
		if !h.authorized(token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"connectors-events-v1"},
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		}
		return
	}

	h.handleConnection(r.Context(), conn)
}

func (h *Hub) handleConnection(ctx context.Context, conn *websocket.Conn) {
	ch := h.subscribe()
	defer func() {
		h.unsubscribe(ch)
		conn.Close(websocket.StatusNormalClosure, "connection closed")
	}()

	if h.logger != nil {
		h.logger.Info("event feed client connected", slog.Int("subscribers", h.Subscribers()))
	}

	// Drain client frames so pings are serviced; the feed is one-way.
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go func() {
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				cancelRead()
				return
			}
		}
	}()

	for {
		select {
		case <-readCtx.Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
