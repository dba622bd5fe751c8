package models

import (
	"encoding/json"
	"time"
)

// ActionType enumerates supported privileged mutations.
type ActionType string

const (
	ActionTypeUserDelete        ActionType = "user.delete"
	ActionTypeFeeRecordPayment  ActionType = "fee.record_payment"
	ActionTypeAttendanceCorrect ActionType = "attendance.correct"
	ActionTypeStudentUpdate     ActionType = "student.update"
)

// ActionState captures the pending-action lifecycle. EXECUTED is reachable
// only from CONFIRMED, and only once.
type ActionState string

const (
	ActionStatePending   ActionState = "PENDING"
	ActionStateConfirmed ActionState = "CONFIRMED"
	ActionStateExecuted  ActionState = "EXECUTED"
	ActionStateExpired   ActionState = "EXPIRED"
	ActionStateCancelled ActionState = "CANCELLED"
)

// PendingAction is a proposed write operation awaiting explicit,
// time-bounded confirmation by its requester.
type PendingAction struct {
	ID          string          `db:"id" json:"id"`
	RequesterID string          `db:"requester_id" json:"requester_id"`
	SchoolID    string          `db:"school_id" json:"school_id"`
	Type        ActionType      `db:"type" json:"action_type"`
	Summary     string          `db:"summary" json:"action_summary"`
	Data        json.RawMessage `db:"data" json:"action_data"`
	State       ActionState     `db:"state" json:"state"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time       `db:"expires_at" json:"expires_at"`
	ExecutedAt  *time.Time      `db:"executed_at" json:"executed_at,omitempty"`
}

// Expired reports whether the action's confirmation window has closed.
func (a *PendingAction) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// ActionFilter constrains pending-action listing.
type ActionFilter struct {
	RequesterID string
	SchoolID    string
	States      []ActionState
	Limit       int
}
