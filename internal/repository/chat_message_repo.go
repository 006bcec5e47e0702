package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dashbot-backend/internal/models"
)

type ChatMessageRepo struct {
	pool *pgxpool.Pool
}

func NewChatMessageRepo(pool *pgxpool.Pool) *ChatMessageRepo {
	return &ChatMessageRepo{pool: pool}
}

// SaveBatch appends messages to a session in one transaction, assigning
// sequence numbers after the session's current tail and bumping the session's
// message count.
func (r *ChatMessageRepo) SaveBatch(ctx context.Context, sessionID uuid.UUID, msgs []models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var next int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(seq), -1) + 1 FROM chat_messages WHERE session_id = $1",
		sessionID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read message tail: %w", err)
	}

	for i, m := range msgs {
		var blocksJSON []byte
		if len(m.Blocks) > 0 {
			blocksJSON, _ = json.Marshal(m.Blocks)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO chat_messages (id, session_id, seq, role, content, blocks_json, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), sessionID, next+i, m.Role, m.Content, blocksJSON, m.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message %d: %w", next+i, err)
		}
	}

	_, err = tx.Exec(ctx,
		"UPDATE chat_sessions SET messages_count = messages_count + $1, updated_at = NOW() WHERE id = $2",
		len(msgs), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump message count: %w", err)
	}

	return tx.Commit(ctx)
}

// ListBySession returns one page of a session's history, oldest first.
// Page numbers start at 1.
func (r *ChatMessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, page, limit int) ([]*models.PersistedMessage, int, error) {
	if page < 1 {
		page = 1
	}

	var total int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE session_id = $1", sessionID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, role, content, blocks_json, created_at
		 FROM chat_messages WHERE session_id = $1
		 ORDER BY seq ASC LIMIT $2 OFFSET $3`,
		sessionID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var msgs []*models.PersistedMessage
	for rows.Next() {
		m := &models.PersistedMessage{}
		var blocksJSON []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &blocksJSON, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(blocksJSON) > 0 {
			json.Unmarshal(blocksJSON, &m.Blocks)
		}
		msgs = append(msgs, m)
	}

	return msgs, total, nil
}
