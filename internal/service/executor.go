package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

// privilegedStore performs the elevated writes behind executed actions.
type privilegedStore interface {
	DeleteUser(ctx context.Context, userID string) error
	RecordFeePayment(ctx context.Context, schoolID, classID, studentID string, amount models.Money, paidAt time.Time) error
	CorrectAttendance(ctx context.Context, schoolID, studentID string, date time.Time, status string) error
	UpdateStudentName(ctx context.Context, schoolID, studentID, fullName string) error
}

type applier func(ctx context.Context, action *models.PendingAction) error

// ActionExecutor maps action types onto elevated writes. It holds the only
// reference to the privileged store; nothing on the request path can reach
// it directly.
type ActionExecutor struct {
	store    privilegedStore
	appliers map[models.ActionType]applier
	logger   *zap.Logger
}

// NewActionExecutor builds the executor with its applier table.
func NewActionExecutor(store privilegedStore, logger *zap.Logger) *ActionExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &ActionExecutor{store: store, logger: logger}
	e.appliers = map[models.ActionType]applier{
		models.ActionTypeUserDelete:        e.applyUserDelete,
		models.ActionTypeFeeRecordPayment:  e.applyFeePayment,
		models.ActionTypeAttendanceCorrect: e.applyAttendanceCorrection,
		models.ActionTypeStudentUpdate:     e.applyStudentUpdate,
	}
	return e
}

// Supports reports whether the executor has an applier for the type.
func (e *ActionExecutor) Supports(t models.ActionType) bool {
	_, ok := e.appliers[t]
	return ok
}

// Execute applies a confirmed action's payload exactly once. Callers own the
// state machine; Execute only performs the write.
func (e *ActionExecutor) Execute(ctx context.Context, action *models.PendingAction) error {
	apply, ok := e.appliers[action.Type]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported action type %q", action.Type))
	}
	if err := apply(ctx, action); err != nil {
		return err
	}
	e.logger.Info("action applied",
		zap.String("action_id", action.ID),
		zap.String("type", string(action.Type)),
		zap.String("school_id", action.SchoolID))
	return nil
}

type userDeletePayload struct {
	UserID string `json:"user_id"`
}

func (e *ActionExecutor) applyUserDelete(ctx context.Context, action *models.PendingAction) error {
	var p userDeletePayload
	if err := decodePayload(action.Data, &p); err != nil {
		return err
	}
	if p.UserID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "user_id is required")
	}
	return e.store.DeleteUser(ctx, p.UserID)
}

type feePaymentPayload struct {
	ClassID     string    `json:"class_id"`
	StudentID   string    `json:"student_id"`
	AmountPaise int64     `json:"amount_paise"`
	PaidAt      time.Time `json:"paid_at"`
}

func (e *ActionExecutor) applyFeePayment(ctx context.Context, action *models.PendingAction) error {
	var p feePaymentPayload
	if err := decodePayload(action.Data, &p); err != nil {
		return err
	}
	if p.StudentID == "" || p.AmountPaise <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "student_id and a positive amount_paise are required")
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}
	return e.store.RecordFeePayment(ctx, action.SchoolID, p.ClassID, p.StudentID, models.Money(p.AmountPaise), p.PaidAt)
}

type attendanceCorrectionPayload struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
}

func (e *ActionExecutor) applyAttendanceCorrection(ctx context.Context, action *models.PendingAction) error {
	var p attendanceCorrectionPayload
	if err := decodePayload(action.Data, &p); err != nil {
		return err
	}
	if p.StudentID == "" || p.Status == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student_id and status are required")
	}
	switch p.Status {
	case "P", "A", "L":
	default:
		return appErrors.Clone(appErrors.ErrValidation, "status must be one of P, A, L")
	}
	date, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date must be in YYYY-MM-DD format")
	}
	return e.store.CorrectAttendance(ctx, action.SchoolID, p.StudentID, date, p.Status)
}

type studentUpdatePayload struct {
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
}

func (e *ActionExecutor) applyStudentUpdate(ctx context.Context, action *models.PendingAction) error {
	var p studentUpdatePayload
	if err := decodePayload(action.Data, &p); err != nil {
		return err
	}
	if p.StudentID == "" || p.FullName == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student_id and full_name are required")
	}
	return e.store.UpdateStudentName(ctx, action.SchoolID, p.StudentID, p.FullName)
}

func decodePayload(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "action_data is required")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid action_data payload")
	}
	return nil
}
