package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"blogapi/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

// Errors returned by Register.
var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Event is the envelope written to sockets.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub maps user ids to their open websocket clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	notifier   *Notifier
	closed     bool
}

// NewHub creates a Hub. With an enabled notifier, Send goes through Redis.
func NewHub(n *Notifier) *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		notifier: n,
	}
}

// Name identifies the hub in logs and metrics.
func (h *Hub) Name() string { return "notifications" }

// Register adds a connection for userID.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes client; repeated calls are harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		observability.WebSocketConnectionsTotal.Dec()
		client.closeSend()
	}
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// Connected is the number of open sockets for userID.
func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Broadcast writes message to every local socket of userID.
func (h *Hub) Broadcast(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		c.TrySend(message)
	}
}

// BroadcastAll writes message to every local socket.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(message)
		}
	}
}

// Send delivers ev to userID on every instance: through Redis when the
// notifier is enabled, otherwise to this process's sockets only.
func (h *Hub) Send(ctx context.Context, userID uint, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if h.notifier.Enabled() {
		if err := h.notifier.PublishUser(ctx, userID, string(data)); err != nil {
			// Local sockets still get it.
			slog.WarnContext(ctx, "notification publish failed, delivering locally",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			h.Broadcast(userID, data)
			return err
		}
		return nil
	}
	h.Broadcast(userID, data)
	return nil
}

// StartWiring subscribes to Redis and forwards messages to local sockets.
func (h *Hub) StartWiring(ctx context.Context) error {
	return h.notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.BroadcastAll([]byte(payload))
			return
		}
		userID, ok := parseUserChannel(channel)
		if !ok {
			slog.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(userID, []byte(payload))
	})
}

// Shutdown closes every socket with a going-away frame.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for userID, clients := range h.conns {
		for client := range clients {
			client.closeSend()
			observability.WebSocketConnectionsTotal.Dec()
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				slog.Debug("close frame failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			}
			_ = client.Conn.Close()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
