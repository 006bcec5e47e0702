package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is a persisted conversation owned by one dashboard client.
type ChatSession struct {
	ID            uuid.UUID `json:"id"`
	ClientID      string    `json:"client_id"`
	Title         string    `json:"title"`
	Model         string    `json:"model"`
	Provider      string    `json:"provider"`
	MessagesCount int       `json:"messages_count"`
	IsArchived    bool      `json:"is_archived"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreateSessionRequest struct {
	Title    string `json:"title"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

type UpdateSessionRequest struct {
	Title      *string `json:"title"`
	IsArchived *bool   `json:"is_archived"`
}

// TitleJob asks the worker pool to generate a short title for a session that
// was created lazily on first send.
type TitleJob struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	ClientID  string    `json:"client_id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}
