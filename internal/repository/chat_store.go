package repository

import (
	"context"

	"github.com/google/uuid"

	"dashbot-backend/internal/models"
)

// ChatStore bundles the session and message repos behind the persistence API
// surface the chat engine consumes.
type ChatStore struct {
	Sessions *ChatSessionRepo
	Messages *ChatMessageRepo
}

func NewChatStore(sessions *ChatSessionRepo, messages *ChatMessageRepo) *ChatStore {
	return &ChatStore{Sessions: sessions, Messages: messages}
}

func (s *ChatStore) CreateSession(ctx context.Context, sess *models.ChatSession) error {
	return s.Sessions.Create(ctx, sess)
}

func (s *ChatStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	return s.Sessions.GetByID(ctx, id)
}

func (s *ChatStore) SaveMessages(ctx context.Context, sessionID uuid.UUID, msgs []models.ChatMessage) error {
	return s.Messages.SaveBatch(ctx, sessionID, msgs)
}

func (s *ChatStore) ListMessages(ctx context.Context, sessionID uuid.UUID, page, limit int) ([]*models.PersistedMessage, int, error) {
	return s.Messages.ListBySession(ctx, sessionID, page, limit)
}
