package stream

import "dashbot-backend/internal/models"

// Fragment kinds as delivered by the model transport.
const (
	KindTextDelta = "text-delta"
	KindTextFinal = "text-final"
	KindReasoning = "reasoning"
	KindChart     = "chart"
)

// Lifecycle states for a fragment.
const (
	StateStreaming = "streaming"
	StateDone      = "done"
)

// Fragment is one unit of an ordered transport stream. Text fragments carry
// either an incremental slice (text-delta) or a full snapshot (text-final).
// Chart fragments deliver an already-structured block out-of-band.
type Fragment struct {
	Kind  string             `json:"kind"`
	Text  string             `json:"text,omitempty"`
	State string             `json:"state,omitempty"`
	Chart *models.ChartBlock `json:"chart,omitempty"`
}

// Message is a transport-level message: an id, a role, and the ordered
// fragment sequence accumulated so far. The transport appends fragments;
// everything downstream only reads.
type Message struct {
	ID    string     `json:"id"`
	Role  string     `json:"role"` // "user" | "assistant" | "system"
	Parts []Fragment `json:"parts"`
}

// Event wraps a fragment with a transport error, for provider stream channels.
type Event struct {
	Fragment Fragment
	Err      error
}
