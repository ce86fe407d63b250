package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/auth"
)

const (
	eventBuffer  = 64
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// Hub fans events out to each user's WebSocket connections. It is the
// chat orchestrator's composing notifier and an auth listener.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu   sync.RWMutex
	subs map[string]map[chan api.Event]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger.With("component", "events"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now:  time.Now,
		subs: make(map[string]map[chan api.Event]struct{}),
	}
}

// Publish queues ev for every connection of userID. Slow consumers drop
// events rather than block the publisher.
func (h *Hub) Publish(userID string, ev api.Event) {
	if ev.TS == 0 {
		ev.TS = h.now().UnixMilli()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("dropped event", "user_id", userID, "event", ev.Event)
		}
	}
}

// Composing implements conversation.Notifier.
func (h *Hub) Composing(userID string, active bool) {
	h.Publish(userID, api.Event{Event: api.EventComposing, Active: active})
}

// HandleAuthEvent forwards session changes, so every open client of a user
// learns about a sign-out or a profile update.
func (h *Hub) HandleAuthEvent(_ context.Context, e auth.Event) {
	if e.User.ID == "" {
		return
	}
	h.Publish(e.User.ID, api.Event{Event: api.EventAuthPrefix + strings.ToLower(string(e.Type))})
}

// Subscribers returns the number of open connections for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) subscribe(userID string) (chan api.Event, func()) {
	ch := make(chan api.Event, eventBuffer)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan api.Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
	}
}

// serve upgrades the request and streams the user's events until either
// side goes away.
func (h *Hub) serve(c *gin.Context, userID string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.subscribe(userID)
	defer unsubscribe()
	h.logger.Debug("event stream opened", "user_id", userID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
