package models

import (
	"time"

	"github.com/google/uuid"
)

// Message variants.
const (
	VariantDefault    = "default"
	VariantStructured = "structured"
)

// ChatMessage is a finalized message in the conversation view. Immutable once
// placed in history; the view is replaced wholesale on every derivation.
type ChatMessage struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"` // "user" | "assistant"
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	Variant   string       `json:"variant"`
	Blocks    []ChartBlock `json:"blocks,omitempty"`
}

// ReasoningTrace is the assistant's in-progress narration for the message
// currently being streamed. At most one is active at any instant.
type ReasoningTrace struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PersistedMessage is a chat message as stored by the persistence API.
type PersistedMessage struct {
	ID        uuid.UUID    `json:"id"`
	SessionID uuid.UUID    `json:"session_id"`
	Role      string       `json:"role"`
	Content   string       `json:"content"`
	Blocks    []ChartBlock `json:"blocks,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ChatState is the live view handed to the dashboard: finalized history, the
// at-most-one streaming entry, and the at-most-one active reasoning trace.
type ChatState struct {
	History   []ChatMessage   `json:"history"`
	Streaming *ChatMessage    `json:"streaming,omitempty"`
	Reasoning *ReasoningTrace `json:"reasoning,omitempty"`
	SessionID *uuid.UUID      `json:"session_id,omitempty"`
	Status    string          `json:"status"` // "ready" | "streaming" | "error"
	Error     string          `json:"error,omitempty"`
}

// SendRequest is the payload for dispatching a user message.
type SendRequest struct {
	Message  string `json:"message"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}
