package postgres

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

	ID           id.ID      `grove:"id,pk"`
	Payload      []byte     `grove:"payload,type:bytea"`
	Status       string     `grove:"status"`
	ReceivedAt   time.Time  `grove:"received_at"`
	SentAt       *time.Time `grove:"sent_at"`
	AttemptCount int        `grove:"attempt_count"`
	LastError    string     `grove:"last_error"`
	LastRetryAt  *time.Time `grove:"last_retry_at"`
	CreatedAt    time.Time  `grove:"created_at"`
	UpdatedAt    time.Time  `grove:"updated_at"`
}

func toMessageModel(m *message.Message) *messageModel {
	return &messageModel{
		ID:           m.ID,
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
	if m.ID.Prefix() != id.PrefixMessage {
		return nil, fmt.Errorf("unexpected message ID %q", m.ID)
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
		ID:           m.ID,
		Payload:      m.Payload,
		Status:       status,
		ReceivedAt:   m.ReceivedAt,
		SentAt:       m.SentAt,
		AttemptCount: m.AttemptCount,
		LastError:    m.LastError,
		LastRetryAt:  m.LastRetryAt,
	}, nil
}

func fromMessageModels(models []messageModel) ([]*message.Message, error) {
	result := make([]*message.Message, len(models))
	for i := range models {
		m, err := fromMessageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = m
	}
	return result, nil
}
