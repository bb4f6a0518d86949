package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role of a conversation participant. Every conversation has exactly one
// participant per role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Opposite returns the other role of the pair.
func (r Role) Opposite() Role {
	if r == RoleAdmin {
		return RoleUser
	}
	return RoleAdmin
}

// Message types accepted on send.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// MaxContentLen bounds message content length.
const MaxContentLen = 1000

// Participant is one of the two identities attached to a conversation.
// Display fields are resolved from the user directory, not stored here.
type Participant struct {
	UserID string `bson:"user_id" json:"userId"`
	Role   Role   `bson:"role" json:"role"`
	Name   string `bson:"-" json:"name,omitempty"`
	Email  string `bson:"-" json:"email,omitempty"`
	Avatar string `bson:"-" json:"avatar,omitempty"`
}

// Attachment describes a file already uploaded by the upload service.
type Attachment struct {
	Filename    string `bson:"filename" json:"filename"`
	ContentType string `bson:"content_type" json:"contentType"`
	Size        int64  `bson:"size" json:"size"`
	URL         string `bson:"url" json:"url"`
}

// Message is embedded in its conversation document, never stored on its own.
type Message struct {
	ID          string      `bson:"_id" json:"id"`
	ClientMsgID string      `bson:"client_msg_id,omitempty" json:"clientMsgId,omitempty"`
	SenderID    string      `bson:"sender_id" json:"senderId"`
	SenderRole  Role        `bson:"sender_role" json:"senderRole"`
	Content     string      `bson:"content" json:"content"`
	MessageType string      `bson:"message_type" json:"messageType"`
	Attachment  *Attachment `bson:"attachment,omitempty" json:"attachment,omitempty"`
	IsRead      bool        `bson:"is_read" json:"isRead"`
	ReadAt      *time.Time  `bson:"read_at,omitempty" json:"readAt,omitempty"`
	SentAt      time.Time   `bson:"sent_at" json:"sentAt"`
}

// LastMessage is the denormalized preview cache, recomputed on every append.
type LastMessage struct {
	Content  string    `bson:"content" json:"content"`
	SenderID string    `bson:"sender_id" json:"senderId"`
	SentAt   time.Time `bson:"sent_at" json:"sentAt"`
}

// UnreadCount holds one counter per role. Each counter tracks messages sent
// by the other role not yet acknowledged by the counter's owner.
type UnreadCount struct {
	User  int `bson:"user" json:"user"`
	Admin int `bson:"admin" json:"admin"`
}

// For returns the counter owned by role.
func (u UnreadCount) For(role Role) int {
	if role == RoleAdmin {
		return u.Admin
	}
	return u.User
}

// Conversation is the persisted two-party chat record.
type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Participants []Participant      `bson:"participants" json:"participants"`
	Messages     []Message          `bson:"messages" json:"messages"`
	LastMessage  *LastMessage       `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	UnreadCount  UnreadCount        `bson:"unread_count" json:"unreadCount"`
	IsActive     bool               `bson:"is_active" json:"isActive"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Participant returns the participant entry for userID, if any.
func (c *Conversation) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	_, ok := c.Participant(userID)
	return ok
}
