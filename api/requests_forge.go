package api

import "encoding/json"

// ---------------------------------------------------------------------------
// Message requests
// ---------------------------------------------------------------------------

// SubmitMessageForgeRequest binds the body for POST /messages.
type SubmitMessageForgeRequest struct {
	Payload json.RawMessage `description:"JSON document to forward downstream" json:"payload"`
}

// GetMessageForgeRequest binds the path for GET /messages/:messageId.
type GetMessageForgeRequest struct {
	MessageID string `description:"Message identifier" path:"messageId"`
}

// ---------------------------------------------------------------------------
// Operational requests
// ---------------------------------------------------------------------------

// StatsForgeRequest is empty; GET /stats has no parameters.
type StatsForgeRequest struct{}

// StatsForgeResponse is the response for GET /stats.
type StatsForgeResponse struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// HealthForgeRequest is empty; GET /health has no parameters.
type HealthForgeRequest struct{}
