package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/agencydesk/support-chat-service/internal/models"
)

// Locals keys set by Middleware and read by handlers and the ws upgrade.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// Middleware validates the bearer token and stashes the caller identity in
// fiber locals. Websocket upgrades also accept the token as a query param
// since browsers cannot set headers on the upgrade request.
func Middleware(v *Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ""
		if hdr := c.Get("Authorization"); hdr != "" {
			parts := strings.SplitN(hdr, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization"})
			}
			token = parts[1]
		} else if q := c.Query("token"); q != "" {
			token = q
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}

		id, err := v.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(LocalUserID, id.UserID)
		c.Locals(LocalRole, string(id.Role))
		return c.Next()
	}
}

// CallerFromLocals rebuilds the identity stored by Middleware.
func CallerFromLocals(userID, role any) (Identity, bool) {
	uid, _ := userID.(string)
	r, _ := role.(string)
	if uid == "" {
		return Identity{}, false
	}
	return Identity{UserID: uid, Role: models.Role(r)}, true
}
