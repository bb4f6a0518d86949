// Package events publishes chat events to Kafka for downstream consumers
// (notification fan-out, analytics). Publishing is fire-and-forget from the
// request's point of view: failures are logged, never surfaced.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/agencydesk/support-chat-service/internal/models"
)

const (
	TypeMessageCreated      = "chat.message.created"
	TypeConversationDeleted = "chat.conversation.deleted"
)

type Envelope struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
	At             time.Time       `json:"at"`
}

type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) MessageCreated(convID string, msg *models.Message) {
	p.publish(convID, Envelope{
		Type:           TypeMessageCreated,
		ConversationID: convID,
		SenderID:       msg.SenderID,
		Message:        msg,
		At:             time.Now().UTC(),
	})
}

func (p *Publisher) ConversationDeleted(convID string) {
	p.publish(convID, Envelope{
		Type:           TypeConversationDeleted,
		ConversationID: convID,
		At:             time.Now().UTC(),
	})
}

func (p *Publisher) publish(key string, ev Envelope) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("marshal event", "type", ev.Type, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	}); err != nil {
		p.log.Errorw("publish event", "type", ev.Type, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
