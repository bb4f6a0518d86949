package ws

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencydesk/support-chat-service/internal/auth"
	"github.com/agencydesk/support-chat-service/internal/hub"
	"github.com/agencydesk/support-chat-service/internal/metrics"
	"github.com/agencydesk/support-chat-service/internal/models"
	"github.com/agencydesk/support-chat-service/internal/presence"
)

// Server-to-client presence events.
const (
	EventUserOnline   = "user-online"
	EventUserOffline  = "user-offline"
	EventNotification = "notification"
)

// Gateway owns the websocket boundary: it registers each accepted
// connection with the hub under the caller's identity (admins also join the
// broadcast group) and handles room bookkeeping envelopes.
type Gateway struct {
	hub      *hub.Hub
	presence *presence.Store // optional
	log      *zap.SugaredLogger
}

func NewGateway(h *hub.Hub, p *presence.Store, log *zap.SugaredLogger) *Gateway {
	return &Gateway{hub: h, presence: p, log: log}
}

// Handle is the websocket.New handler. Identity locals survive the upgrade
// from the auth middleware.
func (g *Gateway) Handle(wsConn *websocket.Conn) {
	userID, _ := wsConn.Locals(auth.LocalUserID).(string)
	role, _ := wsConn.Locals(auth.LocalRole).(string)
	if userID == "" {
		_ = wsConn.Close()
		return
	}
	isAdmin := models.Role(role) == models.RoleAdmin

	conn := newConnection(uuid.NewString(), userID, wsConn)
	first := g.hub.Register(userID, isAdmin, conn)
	metrics.Connections.Inc()
	g.log.Infow("ws connected", "user_id", userID, "conn_id", conn.ID)

	if g.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := g.presence.AddConnection(ctx, userID, conn.ID); err != nil {
			g.log.Warnw("presence add", "user_id", userID, "err", err)
		}
		cancel()
	}
	if first {
		g.hub.Broadcast(hub.Event{Type: EventUserOnline, Data: userID})
	}

	go conn.writePump()
	conn.readPump(func(env Envelope) { g.dispatch(conn, env) })

	// read loop ended: tear down
	last := g.hub.Unregister(userID, conn)
	close(conn.send)
	metrics.Connections.Dec()
	g.log.Infow("ws disconnected", "user_id", userID, "conn_id", conn.ID)

	if g.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if _, err := g.presence.RemoveConnection(ctx, userID, conn.ID); err != nil {
			g.log.Warnw("presence remove", "user_id", userID, "err", err)
		}
		cancel()
	}
	if last {
		g.hub.Broadcast(hub.Event{Type: EventUserOffline, Data: userID})
	}
}

func (g *Gateway) dispatch(conn *Connection, env Envelope) {
	switch env.Type {
	case "join":
		if env.Room != "" && env.Room != hub.GroupAdmins {
			g.hub.Join(env.Room, conn)
		}
	case "leave":
		if env.Room != "" {
			g.hub.Leave(env.Room, conn)
		}
	case "notification":
		if env.Target == "" {
			return
		}
		g.hub.Deliver([]string{env.Target}, hub.Event{
			Type: EventNotification,
			Data: env.Payload,
		})
	}
}
