package models

import "github.com/google/uuid"

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SessionUpdated notifies clients that session metadata changed (for example,
// a generated title landed).
type SessionUpdated struct {
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title"`
}

// HydrationDone is the one-shot signal that a session switch finished loading.
type HydrationDone struct {
	SessionID uuid.UUID `json:"session_id"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
