package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/agencydesk/support-chat-service/internal/hub"
	"github.com/agencydesk/support-chat-service/internal/metrics"
)

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Envelope is the client-to-server wire format.
type Envelope struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Connection is one live websocket client. It satisfies hub.Channel through
// a buffered send channel; a full buffer drops the event rather than stall
// the sender (live delivery is best-effort).
type Connection struct {
	ID     string
	UserID string

	ws   *websocket.Conn
	send chan hub.Event
}

func newConnection(id, userID string, wsConn *websocket.Conn) *Connection {
	return &Connection{
		ID:     id,
		UserID: userID,
		ws:     wsConn,
		send:   make(chan hub.Event, 256),
	}
}

// Push queues ev for delivery. Never blocks.
func (c *Connection) Push(ev hub.Event) bool {
	select {
	case c.send <- ev:
		metrics.EventsDelivered.Inc()
		return true
	default:
		return false
	}
}

func (c *Connection) readPump(handle func(Envelope)) {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		handle(env)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
