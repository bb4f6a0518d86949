package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agencydesk/support-chat-service/internal/auth"
	"github.com/agencydesk/support-chat-service/internal/events"
	"github.com/agencydesk/support-chat-service/internal/hub"
	"github.com/agencydesk/support-chat-service/internal/metrics"
	"github.com/agencydesk/support-chat-service/internal/models"
	"github.com/agencydesk/support-chat-service/internal/receipts"
	"github.com/agencydesk/support-chat-service/internal/repository"
	"github.com/agencydesk/support-chat-service/internal/users"
)

// EventMessageReceived is pushed to every participant other than the sender,
// and to the admin broadcast group when the sender is not an admin.
const EventMessageReceived = "message-received"

// MessageEvent is the live-channel payload for a newly appended message.
type MessageEvent struct {
	ConversationID string          `json:"conversationId"`
	Message        *models.Message `json:"message"`
	SenderID       string          `json:"senderId"`
}

// Deliverer is the live fan-out boundary. The in-process hub implements it;
// a shared pub/sub backplane could replace it without touching this service.
type Deliverer interface {
	Deliver(identities []string, ev hub.Event)
	DeliverToGroup(group string, ev hub.Event)
}

// SendMessageInput is the append request after transport decoding.
type SendMessageInput struct {
	Content     string
	MessageType string
	Attachment  *models.Attachment
	ClientMsgID string
}

// Pagination mirrors the admin-list response metadata.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// ChatService is the only writer of the conversation store and the
// translation boundary between storage errors and the API taxonomy.
type ChatService struct {
	repo repository.ConversationRepository
	dir  users.Directory
	hub  Deliverer
	pub  *events.Publisher // optional
	log  *zap.SugaredLogger
}

func NewChatService(repo repository.ConversationRepository, dir users.Directory, d Deliverer, pub *events.Publisher, log *zap.SugaredLogger) *ChatService {
	return &ChatService{repo: repo, dir: dir, hub: d, pub: pub, log: log}
}

func callerRole(caller auth.Identity) models.Role {
	if caller.Role == models.RoleAdmin {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// GetOrCreateSupportConversation lazily creates the caller's conversation
// with the support admin on first request.
func (s *ChatService) GetOrCreateSupportConversation(ctx context.Context, caller auth.Identity) (*models.Conversation, error) {
	if callerRole(caller) != models.RoleUser {
		return nil, ErrForbidden
	}

	admin, err := s.dir.FindAdmin(ctx)
	if err != nil {
		if err == users.ErrNoAdmin {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	conv, err := s.repo.FindByParticipants(ctx, caller.UserID, admin.ID)
	if err == repository.ErrNotFound {
		conv, err = s.repo.Create(ctx,
			models.Participant{UserID: caller.UserID, Role: models.RoleUser},
			models.Participant{UserID: admin.ID, Role: models.RoleAdmin},
		)
		if err == repository.ErrConflict {
			conv, err = s.repo.FindByParticipants(ctx, caller.UserID, admin.ID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	s.resolveParticipants(ctx, conv)
	return conv, nil
}

// ListConversations is the admin inbox: active conversations,
// newest-activity-first.
func (s *ChatService) ListConversations(ctx context.Context, caller auth.Identity, page, limit int) ([]*models.Conversation, *Pagination, error) {
	if callerRole(caller) != models.RoleAdmin {
		return nil, nil, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	convs, total, err := s.repo.ListActive(ctx, repository.Page{Number: page, Limit: limit})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	for _, c := range convs {
		s.resolveParticipants(ctx, c)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return convs, &Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}, nil
}

// GetConversation returns one conversation with resolved participant info.
// Viewing acknowledges: the caller's unread counter is reset as a side
// effect (coarser than per-message receipts, which MarkRead handles).
func (s *ChatService) GetConversation(ctx context.Context, caller auth.Identity, id string) (*models.Conversation, error) {
	conv, err := s.authorized(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	role := callerRole(caller)
	if err := s.repo.ResetUnread(ctx, id, role); err != nil && err != repository.ErrNotFound {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	conv.UnreadCount = receipts.ResetCounter(conv.UnreadCount, role)

	s.resolveParticipants(ctx, conv)
	return conv, nil
}

// SendMessage validates, durably appends, then fans out. Delivery happens
// only after the store confirms the write.
func (s *ChatService) SendMessage(ctx context.Context, caller auth.Identity, convID string, in SendMessageInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, validationErr("content", "must not be empty")
	}
	if len(content) > models.MaxContentLen {
		return nil, validationErr("content", fmt.Sprintf("must be at most %d characters", models.MaxContentLen))
	}
	msgType := in.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !models.ValidMessageType(msgType) {
		return nil, validationErr("messageType", "must be one of text, image, file")
	}
	if msgType == models.MessageTypeText && in.Attachment != nil {
		return nil, validationErr("attachment", "only image and file messages carry attachments")
	}

	conv, err := s.authorized(ctx, caller, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, ErrNotFound
	}

	msg := &models.Message{
		ID:          uuid.NewString(),
		ClientMsgID: in.ClientMsgID,
		SenderID:    caller.UserID,
		SenderRole:  callerRole(caller),
		Content:     content,
		MessageType: msgType,
		Attachment:  in.Attachment,
		SentAt:      time.Now().UTC(),
	}

	saved, err := s.repo.AppendMessage(ctx, convID, msg)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	metrics.MessagesSent.Inc()

	ev := hub.Event{Type: EventMessageReceived, Data: MessageEvent{
		ConversationID: convID,
		Message:        saved,
		SenderID:       caller.UserID,
	}}
	var recipients []string
	for _, p := range conv.Participants {
		if p.UserID != caller.UserID {
			recipients = append(recipients, p.UserID)
		}
	}
	s.hub.Deliver(recipients, ev)
	if callerRole(caller) != models.RoleAdmin {
		s.hub.DeliverToGroup(hub.GroupAdmins, ev)
	}
	s.log.Debugw("message appended", "conversation_id", convID, "sender_id", caller.UserID, "type", msgType)

	if s.pub != nil {
		s.pub.MessageCreated(convID, saved)
	}
	return saved, nil
}

// MarkRead flips every unread message addressed to the caller and zeroes
// their counter. Safe to call repeatedly.
func (s *ChatService) MarkRead(ctx context.Context, caller auth.Identity, convID string) (int, error) {
	if _, err := s.authorized(ctx, caller, convID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRead(ctx, convID, callerRole(caller), time.Now().UTC())
	if err != nil {
		if err == repository.ErrNotFound {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return n, nil
}

// GetUnreadCount sums the caller's counters: admins across all active
// conversations, users across their own.
func (s *ChatService) GetUnreadCount(ctx context.Context, caller auth.Identity) (int, error) {
	var (
		n   int
		err error
	)
	if callerRole(caller) == models.RoleAdmin {
		n, err = s.repo.UnreadTotalForAdmin(ctx)
	} else {
		n, err = s.repo.UnreadTotalForUser(ctx, caller.UserID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return n, nil
}

// DeleteConversation soft-deletes: the conversation leaves active listings
// but keeps its full message log.
func (s *ChatService) DeleteConversation(ctx context.Context, caller auth.Identity, convID string) error {
	if callerRole(caller) != models.RoleAdmin {
		return ErrForbidden
	}
	if err := s.repo.SoftDelete(ctx, convID); err != nil {
		if err == repository.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if s.pub != nil {
		s.pub.ConversationDeleted(convID)
	}
	s.log.Infow("conversation soft-deleted", "conversation_id", convID, "by", caller.UserID)
	return nil
}

// authorized loads the conversation and enforces the participant-or-admin
// rule shared by the fetch, send and read paths.
func (s *ChatService) authorized(ctx context.Context, caller auth.Identity, id string) (*models.Conversation, error) {
	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if !conv.HasParticipant(caller.UserID) && callerRole(caller) != models.RoleAdmin {
		return nil, ErrForbidden
	}
	return conv, nil
}

func (s *ChatService) resolveParticipants(ctx context.Context, conv *models.Conversation) {
	for i := range conv.Participants {
		u, err := s.dir.Get(ctx, conv.Participants[i].UserID)
		if err != nil || u == nil {
			continue
		}
		conv.Participants[i].Name = u.Name
		conv.Participants[i].Email = u.Email
		conv.Participants[i].Avatar = u.Avatar
	}
}
