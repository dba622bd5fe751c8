package models

import "time"

// MessageRole distinguishes conversation authors.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatMessage is a single turn in a conversation. Messages are append-only
// within a session.
type ChatMessage struct {
	ID        string      `db:"id" json:"id"`
	SessionID string      `db:"session_id" json:"session_id"`
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// ChatSession is conversational memory scoped to continuity and tone only.
// No field of a session is ever read as a numeric source: the verified data
// fetcher cannot accept a session, so the separation holds at the type level.
type ChatSession struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Title       string    `db:"title" json:"title"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SessionWithMessages pairs a session with its ordered message history.
type SessionWithMessages struct {
	ChatSession
	Messages []ChatMessage `json:"messages"`
}
