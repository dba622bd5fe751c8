package dto

import "time"

// SessionSummary is the list projection of a conversation.
type SessionSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastUpdated time.Time `json:"last_updated"`
}
