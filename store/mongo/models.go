package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/message"
)

type messageModel struct {
	grove.BaseModel `grove:"table:courier_messages"`

	ID           string     `grove:"id,pk"         bson:"_id"`
	Payload      []byte     `grove:"payload"       bson:"payload"`
	Status       string     `grove:"status"        bson:"status"`
	ReceivedAt   time.Time  `grove:"received_at"   bson:"received_at"`
	SentAt       *time.Time `grove:"sent_at"       bson:"sent_at,omitempty"`
	AttemptCount int        `grove:"attempt_count" bson:"attempt_count"`
	LastError    string     `grove:"last_error"    bson:"last_error"`
	LastRetryAt  *time.Time `grove:"last_retry_at" bson:"last_retry_at,omitempty"`
	CreatedAt    time.Time  `grove:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time  `grove:"updated_at"    bson:"updated_at"`
}

func toMessageModel(m *message.Message) *messageModel {
	return &messageModel{
		ID:           m.ID.String(),
		Payload:      m.Payload,
		Status:       string(m.Status),
		ReceivedAt:   m.ReceivedAt,
		SentAt:       m.SentAt,
		AttemptCount: m.AttemptCount,
		LastError:    m.LastError,
		LastRetryAt:  m.LastRetryAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromMessageModel(m *messageModel) (*message.Message, error) {
	msgID, err := id.ParseMessageID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse message ID %q: %w", m.ID, err)
	}
	status, err := message.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}
	return &message.Message{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           msgID,
		Payload:      m.Payload,
		Status:       status,
		ReceivedAt:   m.ReceivedAt,
		SentAt:       m.SentAt,
		AttemptCount: m.AttemptCount,
		LastError:    m.LastError,
		LastRetryAt:  m.LastRetryAt,
	}, nil
}
