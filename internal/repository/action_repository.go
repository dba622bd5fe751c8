package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

// ActionRepository persists pending actions. Every state change is a single
// conditional UPDATE keyed on the current state, so concurrent confirms on
// the same action resolve to exactly one winner at the store layer.
type ActionRepository struct {
	db *sqlx.DB
}

// NewActionRepository constructs the repository.
func NewActionRepository(db *sqlx.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create inserts a new pending action.
func (r *ActionRepository) Create(ctx context.Context, action *models.PendingAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.State == "" {
		action.State = models.ActionStatePending
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pending_actions
	(id, requester_id, school_id, type, summary, data, state, created_at, expires_at, executed_at)
	VALUES (:id, :requester_id, :school_id, :type, :summary, :data, :state, :created_at, :expires_at, :executed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, action); err != nil {
		return fmt.Errorf("create pending action: %w", err)
	}
	return nil
}

// GetByID fetches an action by identifier.
func (r *ActionRepository) GetByID(ctx context.Context, id string) (*models.PendingAction, error) {
	const query = `SELECT id, requester_id, school_id, type, summary, data, state, created_at, expires_at, executed_at
	FROM pending_actions WHERE id = $1`
	var action models.PendingAction
	if err := r.db.GetContext(ctx, &action, query, id); err != nil {
		return nil, err
	}
	return &action, nil
}

// List returns actions matching the filter, newest first.
func (r *ActionRepository) List(ctx context.Context, filter models.ActionFilter) ([]models.PendingAction, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, requester_id, school_id, type, summary, data, state, created_at, expires_at, executed_at FROM pending_actions`)

	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 3)
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			args = append(args, state)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	var actions []models.PendingAction
	if err := r.db.SelectContext(ctx, &actions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list pending actions: %w", err)
	}
	return actions, nil
}

// Transition moves an action from one state to another with a compare-and-
// swap on the current state. Returns sql.ErrNoRows when the action was not
// in the expected state, which is how a lost race surfaces.
func (r *ActionRepository) Transition(ctx context.Context, id string, from, to models.ActionState) error {
	const query = `UPDATE pending_actions SET state = $3 WHERE id = $1 AND state = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("transition action %s -> %s: %w", from, to, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ConfirmPending promotes a live PENDING action to CONFIRMED. The expiry
// guard runs inside the same conditional UPDATE, so an action whose window
// closed between the caller's check and this write cannot be confirmed.
// Returns sql.ErrNoRows when the row was not PENDING or was past expiry.
func (r *ActionRepository) ConfirmPending(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE pending_actions SET state = $2 WHERE id = $1 AND state = $3 AND expires_at > $4`
	result, err := r.db.ExecContext(ctx, query, id, models.ActionStateConfirmed, models.ActionStatePending, now)
	if err != nil {
		return fmt.Errorf("confirm pending action: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check confirm rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkExecuted finalises a confirmed action. The CONFIRMED guard makes the
// transition permanent: a second attempt finds no matching row.
func (r *ActionRepository) MarkExecuted(ctx context.Context, id string, executedAt time.Time) error {
	const query = `UPDATE pending_actions SET state = $2, executed_at = $3 WHERE id = $1 AND state = $4`
	result, err := r.db.ExecContext(ctx, query, id, models.ActionStateExecuted, executedAt, models.ActionStateConfirmed)
	if err != nil {
		return fmt.Errorf("mark action executed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check executed rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExpireStale flips PENDING actions past their expiry to EXPIRED. It exists
// for garbage collection; expiry is also enforced lazily at confirm time.
func (r *ActionRepository) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	const query = `UPDATE pending_actions SET state = $1 WHERE state = $2 AND expires_at < $3`
	result, err := r.db.ExecContext(ctx, query, models.ActionStateExpired, models.ActionStatePending, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale actions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check expired rows: %w", err)
	}
	return int(rows), nil
}
