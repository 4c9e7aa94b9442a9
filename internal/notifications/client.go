package notifications

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"blogapi/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control frames.
	maxMessageSize = 1024

	sendBuffer = 64
)

// Event types a client may receive besides "notification".
const (
	EventResync = "resync"
	EventPong   = "pong"
)

var (
	// resyncMessage asks the client to re-fetch /notifications after drops.
	resyncMessage = mustMarshal(Event{Type: EventResync, Payload: map[string]string{"reason": "buffer_full"}})
	pongMessage   = mustMarshal(Event{Type: EventPong})
	pingRequest   = []byte(`"ping"`)
)

func mustMarshal(ev Event) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}
	return b
}

// Client is one open notification socket of a user.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint

	closeOnce    sync.Once
	resyncQueued atomic.Bool
}

// NewClient creates a client with a buffered outbound queue.
func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// ReadPump reads until the connection closes. The only message a client
// sends is {"type":"ping"}, answered with {"type":"pong"}; anything else
// is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		kind, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("notification socket read error", slog.Uint64("user_id", uint64(c.UserID)), slog.String("error", err.Error()))
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind == websocket.TextMessage && isPing(msg) {
			c.TrySend(pongMessage)
		}
	}
}

func isPing(msg []byte) bool {
	var in struct {
		Type json.RawMessage `json:"type"`
	}
	return json.Unmarshal(msg, &in) == nil && bytes.Equal(in.Type, pingRequest)
}

// WritePump writes queued messages and periodic pings until Send closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if bytes.Equal(message, resyncMessage) {
				c.resyncQueued.Store(false)
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. When the queue is full the
// message is dropped, the oldest queued event is evicted and a single resync
// event takes its place so the client reloads its notification list.
func (c *Client) TrySend(message []byte) {
	// Sending on a queue closed by UnregisterClient panics.
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
	slog.Warn("notification socket queue full, dropped event", slog.Uint64("user_id", uint64(c.UserID)))
	if c.resyncQueued.Swap(true) {
		return
	}
	select {
	case <-c.Send:
	default:
	}
	select {
	case c.Send <- resyncMessage:
	default:
		c.resyncQueued.Store(false)
	}
}
