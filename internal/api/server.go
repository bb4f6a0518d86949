package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/agencydesk/support-chat-service/internal/auth"
	"github.com/agencydesk/support-chat-service/internal/metrics"
	"github.com/agencydesk/support-chat-service/internal/service"
	"github.com/agencydesk/support-chat-service/internal/ws"
)

// NewServer assembles the fiber app: REST chat routes, websocket upgrade,
// health and metrics.
func NewServer(svc *service.ChatService, v *auth.Validator, gw *ws.Gateway) *fiber.App {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	h := NewHandlers(svc)
	authed := auth.Middleware(v)

	chat := app.Group("/api/v1/chat", authed)
	chat.Get("/support", h.getSupportConversation)
	chat.Get("/unread-count", h.unreadCount)
	chat.Get("/", h.listConversations)
	chat.Get("/:id", h.getConversation)
	chat.Post("/:id/messages", h.sendMessage)
	chat.Put("/:id/read", h.markRead)
	chat.Delete("/:id", h.deleteConversation)

	app.Get("/ws", authed, websocket.New(gw.Handle))

	return app
}
