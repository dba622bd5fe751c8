package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

// PrivilegedRepository performs the writes behind executed actions. It is
// constructed over the elevated connection pool, never the request-path one:
// the mutations it applies are, by design, beyond the requester's own access
// rights.
type PrivilegedRepository struct {
	db *sqlx.DB
}

// NewPrivilegedRepository constructs the repository over the elevated pool.
func NewPrivilegedRepository(db *sqlx.DB) *PrivilegedRepository {
	return &PrivilegedRepository{db: db}
}

// DeleteUser removes a user account and revokes its refresh tokens.
func (r *PrivilegedRepository) DeleteUser(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check user delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// RecordFeePayment inserts a fee payment and its matching ledger entry in
// one transaction so the two reconciliation sources move together.
func (r *PrivilegedRepository) RecordFeePayment(ctx context.Context, schoolID, classID, studentID string, amount models.Money, paidAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fee payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const payment = `INSERT INTO fee_payments (id, school_id, class_id, student_id, amount, paid_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, payment, uuid.NewString(), schoolID, classID, studentID, int64(amount), paidAt); err != nil {
		return fmt.Errorf("insert fee payment: %w", err)
	}

	const ledger = `INSERT INTO fee_ledger (id, school_id, amount, entry_date)
	VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, ledger, uuid.NewString(), schoolID, int64(amount), paidAt); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return tx.Commit()
}

// CorrectAttendance updates a single attendance mark.
func (r *PrivilegedRepository) CorrectAttendance(ctx context.Context, schoolID, studentID string, date time.Time, status string) error {
	const query = `UPDATE daily_attendances SET status = $4 WHERE school_id = $1 AND student_id = $2 AND date = $3`
	result, err := r.db.ExecContext(ctx, query, schoolID, studentID, date, status)
	if err != nil {
		return fmt.Errorf("correct attendance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check attendance rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStudentName updates a student's display name.
func (r *PrivilegedRepository) UpdateStudentName(ctx context.Context, schoolID, studentID, fullName string) error {
	const query = `UPDATE students SET full_name = $3 WHERE school_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, schoolID, studentID, fullName)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check student rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
