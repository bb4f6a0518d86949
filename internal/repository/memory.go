package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/agencydesk/support-chat-service/internal/models"
	"github.com/agencydesk/support-chat-service/internal/receipts"
)

// MemoryRepository keeps conversations in process memory with the same
// semantics as the Mongo implementation. It backs the tests and the
// no-database development mode.
type MemoryRepository struct {
	mu    sync.Mutex
	convs map[string]*models.Conversation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{convs: make(map[string]*models.Conversation)}
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	out := *c
	out.Participants = append([]models.Participant(nil), c.Participants...)
	out.Messages = append([]models.Message(nil), c.Messages...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return &out
}

func (r *MemoryRepository) findPair(userID, adminID string) *models.Conversation {
	for _, c := range r.convs {
		if c.IsActive && c.HasParticipant(userID) && c.HasParticipant(adminID) {
			return c
		}
	}
	return nil
}

func (r *MemoryRepository) FindByParticipants(_ context.Context, userID, adminID string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.findPair(userID, adminID); c != nil {
		return cloneConversation(c), nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) Create(_ context.Context, user, admin models.Participant) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findPair(user.UserID, admin.UserID) != nil {
		return nil, ErrConflict
	}
	now := time.Now().UTC()
	c := &models.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []models.Participant{user, admin},
		Messages:     []models.Message{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.convs[c.ID.Hex()] = c
	return cloneConversation(c), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r *MemoryRepository) AppendMessage(_ context.Context, id string, msg *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok || !c.IsActive {
		return nil, ErrNotFound
	}
	if msg.ClientMsgID != "" {
		for i := range c.Messages {
			if c.Messages[i].ClientMsgID == msg.ClientMsgID {
				existing := c.Messages[i]
				return &existing, nil
			}
		}
	}
	c.Messages = append(c.Messages, *msg)
	c.LastMessage = &models.LastMessage{
		Content:  msg.Content,
		SenderID: msg.SenderID,
		SentAt:   msg.SentAt,
	}
	c.UnreadCount = receipts.OnAppend(c.UnreadCount, msg.SenderRole)
	c.UpdatedAt = msg.SentAt
	return msg, nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, id string, readerRole models.Role, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return 0, ErrNotFound
	}
	n := receipts.ApplyRead(c.Messages, readerRole, now)
	c.UnreadCount = receipts.ResetCounter(c.UnreadCount, readerRole)
	c.UpdatedAt = now
	return n, nil
}

func (r *MemoryRepository) ResetUnread(_ context.Context, id string, readerRole models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return ErrNotFound
	}
	c.UnreadCount = receipts.ResetCounter(c.UnreadCount, readerRole)
	return nil
}

func (r *MemoryRepository) ListActive(_ context.Context, page Page) ([]*models.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*models.Conversation
	for _, c := range r.convs {
		if c.IsActive {
			active = append(active, c)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})
	total := int64(len(active))

	start := int(page.Skip())
	if start > len(active) {
		start = len(active)
	}
	end := start + page.Limit
	if end > len(active) {
		end = len(active)
	}
	out := make([]*models.Conversation, 0, end-start)
	for _, c := range active[start:end] {
		out = append(out, cloneConversation(c))
	}
	return out, total, nil
}

func (r *MemoryRepository) UnreadTotalForAdmin(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int
	for _, c := range r.convs {
		if c.IsActive {
			total += c.UnreadCount.Admin
		}
	}
	return total, nil
}

func (r *MemoryRepository) UnreadTotalForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int
	for _, c := range r.convs {
		if c.IsActive && c.HasParticipant(userID) {
			total += c.UnreadCount.User
		}
	}
	return total, nil
}

func (r *MemoryRepository) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
	return nil
}
