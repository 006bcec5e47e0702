package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dashbot-backend/internal/models"
)

type ChatSessionRepo struct {
	pool *pgxpool.Pool
}

func NewChatSessionRepo(pool *pgxpool.Pool) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool}
}

func (r *ChatSessionRepo) Create(ctx context.Context, s *models.ChatSession) error {
	s.ID = uuid.New()
	if s.Title == "" {
		s.Title = "New conversation"
	}

	query := `INSERT INTO chat_sessions (id, client_id, title, model, provider)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.ClientID, s.Title, s.Model, s.Provider,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *ChatSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	s := &models.ChatSession{}
	query := `SELECT id, client_id, title, model, provider, messages_count,
		is_archived, created_at, updated_at
		FROM chat_sessions WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ClientID, &s.Title, &s.Model, &s.Provider, &s.MessagesCount,
		&s.IsArchived, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ChatSessionRepo) ListByClient(ctx context.Context, clientID string, archived bool, limit, offset int) ([]*models.ChatSession, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM chat_sessions WHERE client_id = $1 AND is_archived = $2",
		clientID, archived,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT id, client_id, title, model, provider, messages_count,
		is_archived, created_at, updated_at
		FROM chat_sessions
		WHERE client_id = $1 AND is_archived = $2
		ORDER BY updated_at DESC LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, clientID, archived, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		s := &models.ChatSession{}
		err := rows.Scan(
			&s.ID, &s.ClientID, &s.Title, &s.Model, &s.Provider, &s.MessagesCount,
			&s.IsArchived, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}

	return sessions, total, nil
}

func (r *ChatSessionRepo) Update(ctx context.Context, id uuid.UUID, title *string, isArchived *bool) (*models.ChatSession, error) {
	set := "updated_at = NOW()"
	args := []interface{}{id}
	argIdx := 2

	if title != nil {
		set += fmt.Sprintf(", title = $%d", argIdx)
		args = append(args, *title)
		argIdx++
	}
	if isArchived != nil {
		set += fmt.Sprintf(", is_archived = $%d", argIdx)
		args = append(args, *isArchived)
		argIdx++
	}

	query := fmt.Sprintf(`UPDATE chat_sessions SET %s WHERE id = $1
		RETURNING id, client_id, title, model, provider, messages_count,
		is_archived, created_at, updated_at`, set)

	s := &models.ChatSession{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.ClientID, &s.Title, &s.Model, &s.Provider, &s.MessagesCount,
		&s.IsArchived, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ChatSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM chat_sessions WHERE id = $1", id)
	return err
}
