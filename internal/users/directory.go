// Package users adapts the identity service's user records for the chat
// subsystem: resolving the support admin and participant display info.
// Account management itself lives elsewhere.
package users

import (
	"context"
	"errors"

	"github.com/agencydesk/support-chat-service/internal/models"
)

var ErrNoAdmin = errors.New("no admin user")

// User is the directory's view of an account.
type User struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Avatar string      `json:"avatar,omitempty"`
	Role   models.Role `json:"role"`
}

// Directory looks up accounts owned by the identity service.
type Directory interface {
	// FindAdmin returns the support admin identity. ErrNoAdmin when the
	// system has none.
	FindAdmin(ctx context.Context) (*User, error)

	// Get returns the user with the given id. Missing users resolve to
	// (nil, nil) rather than an error so stale participant references
	// don't break reads.
	Get(ctx context.Context, id string) (*User, error)
}
