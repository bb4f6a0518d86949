package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agencydesk/support-chat-service/internal/auth"
	"github.com/agencydesk/support-chat-service/internal/hub"
	"github.com/agencydesk/support-chat-service/internal/models"
	"github.com/agencydesk/support-chat-service/internal/repository"
	"github.com/agencydesk/support-chat-service/internal/users"
)

var (
	userCaller  = auth.Identity{UserID: "user-1", Role: models.RoleUser}
	adminCaller = auth.Identity{UserID: "admin-1", Role: models.RoleAdmin}
	strangerID  = auth.Identity{UserID: "stranger-9", Role: models.RoleUser}
)

type fakeDirectory struct {
	admin *users.User
	byID  map[string]*users.User
}

func (d *fakeDirectory) FindAdmin(context.Context) (*users.User, error) {
	if d.admin == nil {
		return nil, users.ErrNoAdmin
	}
	return d.admin, nil
}

func (d *fakeDirectory) Get(_ context.Context, id string) (*users.User, error) {
	return d.byID[id], nil
}

type delivery struct {
	to []string
	ev hub.Event
}

type fakeDeliverer struct {
	direct []delivery
	groups []delivery
}

func (f *fakeDeliverer) Deliver(ids []string, ev hub.Event) {
	f.direct = append(f.direct, delivery{to: ids, ev: ev})
}

func (f *fakeDeliverer) DeliverToGroup(group string, ev hub.Event) {
	f.groups = append(f.groups, delivery{to: []string{group}, ev: ev})
}

func newFixture() (*ChatService, *repository.MemoryRepository, *fakeDeliverer) {
	repo := repository.NewMemoryRepository()
	dir := &fakeDirectory{
		admin: &users.User{ID: "admin-1", Name: "Support", Email: "support@agency.test", Role: models.RoleAdmin},
		byID: map[string]*users.User{
			"admin-1": {ID: "admin-1", Name: "Support", Email: "support@agency.test", Role: models.RoleAdmin},
			"user-1":  {ID: "user-1", Name: "Dana", Email: "dana@client.test", Role: models.RoleUser},
		},
	}
	d := &fakeDeliverer{}
	svc := NewChatService(repo, dir, d, nil, zap.NewNop().Sugar())
	return svc, repo, d
}

func TestGetOrCreateStartsEmpty(t *testing.T) {
	svc, _, _ := newFixture()

	conv, err := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Zero(t, conv.UnreadCount.User)
	assert.Zero(t, conv.UnreadCount.Admin)
	require.Len(t, conv.Participants, 2)

	user, ok := conv.Participant("user-1")
	require.True(t, ok)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, "Dana", user.Name, "participant display info must be resolved")
	admin, ok := conv.Participant("admin-1")
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestGetOrCreateIsLazyAndStable(t *testing.T) {
	svc, _, _ := newFixture()

	first, err := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	require.NoError(t, err)
	second, err := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateRequiresUserRoleAndAdminPresence(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.GetOrCreateSupportConversation(context.Background(), adminCaller)
	assert.ErrorIs(t, err, ErrForbidden)

	repo := repository.NewMemoryRepository()
	noAdmin := NewChatService(repo, &fakeDirectory{}, &fakeDeliverer{}, nil, zap.NewNop().Sugar())
	_, err = noAdmin.GetOrCreateSupportConversation(context.Background(), userCaller)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendMessageUpdatesCountersAndDelivers(t *testing.T) {
	svc, _, del := newFixture()
	conv, err := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	require.NoError(t, err)
	id := conv.ID.Hex()

	msg, err := svc.SendMessage(context.Background(), userCaller, id, SendMessageInput{Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Content)
	assert.Equal(t, models.MessageTypeText, msg.MessageType)

	got, err := svc.GetConversation(context.Background(), adminCaller, id)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Hello", got.LastMessage.Content)
	assert.Zero(t, got.UnreadCount.User)

	// sender delivery: to the admin participant, plus the broadcast group
	require.Len(t, del.direct, 1)
	assert.Equal(t, []string{"admin-1"}, del.direct[0].to)
	assert.Equal(t, EventMessageReceived, del.direct[0].ev.Type)
	payload, ok := del.direct[0].ev.Data.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, id, payload.ConversationID)
	assert.Equal(t, "user-1", payload.SenderID)

	require.Len(t, del.groups, 1)
	assert.Equal(t, []string{hub.GroupAdmins}, del.groups[0].to)
}

func TestUserMessageOnlyIncrementsAdminCounter(t *testing.T) {
	svc, repo, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()

	_, err := svc.SendMessage(context.Background(), userCaller, id, SendMessageInput{Content: "Hello"})
	require.NoError(t, err)

	got, _ := repo.FindByID(context.Background(), id)
	assert.Equal(t, 1, got.UnreadCount.Admin)
	assert.Zero(t, got.UnreadCount.User)
}

func TestAdminReplyDeliversToUserWithoutGroupEcho(t *testing.T) {
	svc, repo, del := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()

	_, err := svc.SendMessage(context.Background(), adminCaller, id, SendMessageInput{Content: "Hi there"})
	require.NoError(t, err)

	got, _ := repo.FindByID(context.Background(), id)
	assert.Equal(t, 1, got.UnreadCount.User)
	assert.Zero(t, got.UnreadCount.Admin)

	require.Len(t, del.direct, 1)
	assert.Equal(t, []string{"user-1"}, del.direct[0].to)
	assert.Empty(t, del.groups, "admin messages skip the admin broadcast group")
}

func TestMarkReadFlipsReceiptsOnce(t *testing.T) {
	svc, repo, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()
	_, err := svc.SendMessage(context.Background(), userCaller, id, SendMessageInput{Content: "Hello"})
	require.NoError(t, err)

	n, err := svc.MarkRead(context.Background(), adminCaller, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := repo.FindByID(context.Background(), id)
	assert.Zero(t, got.UnreadCount.Admin)
	require.True(t, got.Messages[0].IsRead)
	assert.NotNil(t, got.Messages[0].ReadAt)

	n, err = svc.MarkRead(context.Background(), adminCaller, id)
	require.NoError(t, err)
	assert.Zero(t, n, "mark-read is idempotent")
}

func TestGetConversationResetsViewerCounter(t *testing.T) {
	svc, repo, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()
	_, err := svc.SendMessage(context.Background(), adminCaller, id, SendMessageInput{Content: "ping"})
	require.NoError(t, err)

	got, err := svc.GetConversation(context.Background(), userCaller, id)
	require.NoError(t, err)
	assert.Zero(t, got.UnreadCount.User)

	stored, _ := repo.FindByID(context.Background(), id)
	assert.Zero(t, stored.UnreadCount.User)
	assert.False(t, stored.Messages[0].IsRead, "viewing does not flip per-message receipts")
}

func TestOutsiderIsForbiddenEverywhere(t *testing.T) {
	svc, _, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()

	_, err := svc.GetConversation(context.Background(), strangerID, id)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.SendMessage(context.Background(), strangerID, id, SendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.MarkRead(context.Background(), strangerID, id)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()

	cases := []struct {
		name  string
		in    SendMessageInput
		field string
	}{
		{"empty", SendMessageInput{Content: "   "}, "content"},
		{"too long", SendMessageInput{Content: strings.Repeat("x", models.MaxContentLen+1)}, "content"},
		{"bad type", SendMessageInput{Content: "hi", MessageType: "video"}, "messageType"},
		{"attachment on text", SendMessageInput{
			Content:    "hi",
			Attachment: &models.Attachment{Filename: "a.png"},
		}, "attachment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SendMessage(context.Background(), userCaller, id, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestSendAttachmentMessage(t *testing.T) {
	svc, _, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)

	msg, err := svc.SendMessage(context.Background(), userCaller, conv.ID.Hex(), SendMessageInput{
		Content:     "screenshot",
		MessageType: models.MessageTypeImage,
		Attachment: &models.Attachment{
			Filename:    "bug.png",
			ContentType: "image/png",
			Size:        2048,
			URL:         "https://cdn.agency.test/bug.png",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "bug.png", msg.Attachment.Filename)
}

func TestSendMessageMissingConversation(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.SendMessage(context.Background(), adminCaller, "64b000000000000000000000", SendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnreadCountPerRole(t *testing.T) {
	svc, _, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()

	_, err := svc.SendMessage(context.Background(), userCaller, id, SendMessageInput{Content: "one"})
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), userCaller, id, SendMessageInput{Content: "two"})
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), adminCaller, id, SendMessageInput{Content: "reply"})
	require.NoError(t, err)

	adminTotal, err := svc.GetUnreadCount(context.Background(), adminCaller)
	require.NoError(t, err)
	assert.Equal(t, 2, adminTotal)

	userTotal, err := svc.GetUnreadCount(context.Background(), userCaller)
	require.NoError(t, err)
	assert.Equal(t, 1, userTotal)
}

func TestListConversationsAdminOnlyWithPagination(t *testing.T) {
	svc, _, _ := newFixture()
	_, _, err := svc.ListConversations(context.Background(), userCaller, 1, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	require.NoError(t, err)

	convs, pg, err := svc.ListConversations(context.Background(), adminCaller, 1, 10)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
	assert.Equal(t, 1, pg.CurrentPage)
	assert.Equal(t, 1, pg.TotalPages)
	assert.EqualValues(t, 1, pg.TotalItems)
	assert.False(t, pg.HasNext)
	assert.False(t, pg.HasPrev)
}

func TestSoftDeleteHidesButKeepsHistory(t *testing.T) {
	svc, _, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()
	_, err := svc.SendMessage(context.Background(), userCaller, id, SendMessageInput{Content: "keep me"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteConversation(context.Background(), userCaller, id), ErrForbidden)
	require.NoError(t, svc.DeleteConversation(context.Background(), adminCaller, id))

	convs, _, err := svc.ListConversations(context.Background(), adminCaller, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, convs)

	got, err := svc.GetConversation(context.Background(), adminCaller, id)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "keep me", got.Messages[0].Content)

	_, err = svc.SendMessage(context.Background(), userCaller, id, SendMessageInput{Content: "too late"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetryWithClientMsgIDDoesNotDuplicate(t *testing.T) {
	svc, repo, _ := newFixture()
	conv, _ := svc.GetOrCreateSupportConversation(context.Background(), userCaller)
	id := conv.ID.Hex()

	in := SendMessageInput{Content: "Hello", ClientMsgID: "tmp-123"}
	first, err := svc.SendMessage(context.Background(), userCaller, id, in)
	require.NoError(t, err)
	second, err := svc.SendMessage(context.Background(), userCaller, id, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, _ := repo.FindByID(context.Background(), id)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, 1, got.UnreadCount.Admin)
}
