package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
)

const acceptedMessage = "Message received and queued for processing"

// SubmitResponse is returned once a message is durably stored.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Payload formats reported by MessageView.
const (
	PayloadFormatJSON = "json"
	PayloadFormatText = "text"
)

// MessageView is the read model for a stored message. Payloads that are not
// valid JSON are returned as a JSON string with PayloadFormat "text".
type MessageView struct {
	ID            string          `json:"id"`
	Status        message.Status  `json:"status"`
	Payload       json.RawMessage `json:"payload"`
	PayloadFormat string          `json:"payload_format"`
	ReceivedAt    time.Time       `json:"received_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	AttemptCount  int             `json:"attempt_count"`
	LastError     string          `json:"last_error,omitempty"`
	LastRetryAt   *time.Time      `json:"last_retry_at,omitempty"`
}

func newMessageView(m *message.Message) MessageView {
	payload, format := viewPayload(m.Payload)
	return MessageView{
		ID:            m.ID.String(),
		Status:        m.Status,
		Payload:       payload,
		PayloadFormat: format,
		ReceivedAt:    m.ReceivedAt,
		SentAt:        m.SentAt,
		AttemptCount:  m.AttemptCount,
		LastError:     m.LastError,
		LastRetryAt:   m.LastRetryAt,
	}
}

// viewPayload passes JSON through untouched and quotes anything else.
func viewPayload(p []byte) (json.RawMessage, string) {
	if json.Valid(p) {
		return json.RawMessage(p), PayloadFormatJSON
	}
	quoted, err := json.Marshal(string(p))
	if err != nil {
		return json.RawMessage(`""`), PayloadFormatText
	}
	return quoted, PayloadFormatText
}

func (h *Handler) submitMessage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	payload, err := readPayload(http.MaxBytesReader(w, r.Body, h.maxBodyBytes), h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, errPayloadTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgID, err := h.svc.Submit(r.Context(), payload)
	if err != nil {
		if errors.Is(err, courier.ErrEmptyPayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("submit message", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		Success: true,
		Message: acceptedMessage,
		ID:      msgID.String(),
	})
}

func (h *Handler) getMessage(w http.ResponseWriter, r *http.Request) {
	msgID, err := id.ParseMessageID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message ID")
		return
	}

	m, err := h.svc.Get(r.Context(), msgID)
	if err != nil {
		if errors.Is(err, courier.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newMessageView(m))
}
