package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/agencydesk/support-chat-service/internal/auth"
	"github.com/agencydesk/support-chat-service/internal/models"
	"github.com/agencydesk/support-chat-service/internal/service"
)

type Handlers struct {
	svc *service.ChatService
}

func NewHandlers(svc *service.ChatService) *Handlers {
	return &Handlers{svc: svc}
}

func caller(c *fiber.Ctx) auth.Identity {
	id, _ := auth.CallerFromLocals(c.Locals(auth.LocalUserID), c.Locals(auth.LocalRole))
	return id
}

// fail maps the service error taxonomy onto HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized"})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, service.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already exists"})
	case errors.Is(err, service.ErrTransient):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "temporarily unavailable, retry"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func (h *Handlers) getSupportConversation(c *fiber.Ctx) error {
	conv, err := h.svc.GetOrCreateSupportConversation(c.Context(), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": fiber.Map{"chat": conv}})
}

func (h *Handlers) listConversations(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	convs, pg, err := h.svc.ListConversations(c.Context(), caller(c), page, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": fiber.Map{"chats": convs, "pagination": pg}})
}

func (h *Handlers) getConversation(c *fiber.Ctx) error {
	conv, err := h.svc.GetConversation(c.Context(), caller(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": fiber.Map{"chat": conv}})
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		Content     string             `json:"content"`
		MessageType string             `json:"messageType"`
		Attachment  *models.Attachment `json:"attachment"`
		ClientMsgID string             `json:"clientMsgId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	msg, err := h.svc.SendMessage(c.Context(), caller(c), c.Params("id"), service.SendMessageInput{
		Content:     req.Content,
		MessageType: req.MessageType,
		Attachment:  req.Attachment,
		ClientMsgID: req.ClientMsgID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": fiber.Map{"message": msg}})
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	n, err := h.svc.MarkRead(c.Context(), caller(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": fiber.Map{"marked": n}})
}

func (h *Handlers) unreadCount(c *fiber.Ctx) error {
	n, err := h.svc.GetUnreadCount(c.Context(), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": fiber.Map{"unreadCount": n}})
}

func (h *Handlers) deleteConversation(c *fiber.Ctx) error {
	if err := h.svc.DeleteConversation(c.Context(), caller(c), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
