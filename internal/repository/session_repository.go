package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

// SessionRepository persists conversation sessions and their append-only
// message history.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts a new conversation for the owner.
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastUpdated.IsZero() {
		session.LastUpdated = now
	}
	const query = `INSERT INTO chat_sessions (id, owner_id, title, last_updated, created_at)
	VALUES (:id, :owner_id, :title, :last_updated, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession fetches a session by identifier.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	const query = `SELECT id, owner_id, title, last_updated, created_at FROM chat_sessions WHERE id = $1`
	var session models.ChatSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns the owner's conversations, most recent first.
func (r *SessionRepository) ListSessions(ctx context.Context, ownerID string) ([]models.ChatSession, error) {
	const query = `SELECT id, owner_id, title, last_updated, created_at
	FROM chat_sessions WHERE owner_id = $1 ORDER BY last_updated DESC LIMIT 100`
	var sessions []models.ChatSession
	if err := r.db.SelectContext(ctx, &sessions, query, ownerID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// AppendMessages adds messages to a session and bumps last_updated in one
// transaction, preserving message order.
func (r *SessionRepository) AppendMessages(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO chat_messages (id, session_id, role, content, created_at)
	VALUES (:id, :session_id, :role, :content, :created_at)`
	now := time.Now().UTC()
	for i := range messages {
		msg := &messages[i]
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		msg.SessionID = sessionID
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insert, msg); err != nil {
			return fmt.Errorf("append message: %w", err)
		}
	}

	const bump = `UPDATE chat_sessions SET last_updated = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, sessionID, now); err != nil {
		return fmt.Errorf("bump session: %w", err)
	}
	return tx.Commit()
}

// ListMessages returns the most recent messages of a session in
// chronological order.
func (r *SessionRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, session_id, role, content, created_at FROM (
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = $1
		ORDER BY created_at DESC LIMIT %d
	) recent ORDER BY created_at ASC`, limit)
	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, sessionID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// DeleteSession removes a session and its messages.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}
