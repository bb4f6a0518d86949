package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agencydesk/support-chat-service/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Page carries the offsets for admin conversation listings.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Skip() int64 { return int64((p.Number - 1) * p.Limit) }

// ConversationRepository is the storage boundary for conversations. Every
// mutating operation is a single atomic read-modify-write against one
// conversation document so counters can never drift from the message log.
type ConversationRepository interface {
	// FindByParticipants matches the unordered (user, admin) pair among
	// active conversations. ErrNotFound if no such conversation exists.
	FindByParticipants(ctx context.Context, userID, adminID string) (*models.Conversation, error)

	// Create inserts an empty conversation for the pair. ErrConflict if one
	// already exists.
	Create(ctx context.Context, user, admin models.Participant) (*models.Conversation, error)

	// FindByID returns the conversation whether active or soft-deleted.
	FindByID(ctx context.Context, id string) (*models.Conversation, error)

	// AppendMessage atomically appends msg, recomputes last_message, bumps
	// updated_at and increments the receiving role's unread counter.
	// ErrNotFound if the conversation is missing or inactive. When the
	// message carries a client id already present in the log the existing
	// entry is returned instead of appending a duplicate.
	AppendMessage(ctx context.Context, id string, msg *models.Message) (*models.Message, error)

	// MarkRead flips every unread message addressed to readerRole and zeroes
	// the reader's counter in one atomic step. Returns how many messages
	// transitioned; idempotent.
	MarkRead(ctx context.Context, id string, readerRole models.Role, now time.Time) (int, error)

	// ResetUnread zeroes readerRole's counter without touching per-message
	// read state (the view-a-conversation side effect).
	ResetUnread(ctx context.Context, id string, readerRole models.Role) error

	// ListActive returns active conversations ordered by latest activity,
	// plus the total number of active conversations.
	ListActive(ctx context.Context, page Page) ([]*models.Conversation, int64, error)

	// UnreadTotalForAdmin sums unread_count.admin over active conversations.
	UnreadTotalForAdmin(ctx context.Context) (int, error)

	// UnreadTotalForUser sums unread_count.user over the user's active
	// conversations.
	UnreadTotalForUser(ctx context.Context, userID string) (int, error)

	// SoftDelete marks the conversation inactive, keeping its message log.
	SoftDelete(ctx context.Context, id string) error
}
