package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-advisor-api/internal/dto"
	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

// actionStore is the subset of the action repository the service needs.
type actionStore interface {
	Create(ctx context.Context, action *models.PendingAction) error
	GetByID(ctx context.Context, id string) (*models.PendingAction, error)
	List(ctx context.Context, filter models.ActionFilter) ([]models.PendingAction, error)
	Transition(ctx context.Context, id string, from, to models.ActionState) error
	ConfirmPending(ctx context.Context, id string, now time.Time) error
	MarkExecuted(ctx context.Context, id string, executedAt time.Time) error
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// actionApplier performs the elevated write behind a confirmed action.
type actionApplier interface {
	Supports(t models.ActionType) bool
	Execute(ctx context.Context, action *models.PendingAction) error
}

// ActionService runs the two-phase propose/confirm workflow. Proposals never
// touch records; only a confirm that wins the PENDING to CONFIRMED transition
// reaches the executor, and the CONFIRMED guard on MarkExecuted keeps the
// write single-shot.
type ActionService struct {
	repo     actionStore
	executor actionApplier
	authz    Authorizer
	audit    auditRecorder
	metrics  *MetricsService
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewActionService constructs the service.
func NewActionService(repo actionStore, executor actionApplier, authz Authorizer, audit auditRecorder, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ActionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ActionService{
		repo:     repo,
		executor: executor,
		authz:    authz,
		audit:    audit,
		metrics:  metrics,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create proposes a privileged action. The action starts PENDING with a
// fixed confirmation window; no record changes until it is confirmed.
func (s *ActionService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateActionRequest) (*models.PendingAction, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.authz.HasCapability(claims, claims.SchoolID, CapActionCreate) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this account cannot propose actions")
	}
	if !s.executor.Supports(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported action type %q", req.Type))
	}

	now := s.now().UTC()
	action := &models.PendingAction{
		RequesterID: claims.UserID,
		SchoolID:    claims.SchoolID,
		Type:        req.Type,
		Summary:     req.Summary,
		Data:        req.Data,
		State:       models.ActionStatePending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, action); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create action")
	}

	s.recordAudit(ctx, claims, models.AuditActionActionCreate, action.ID)
	s.metrics.RecordActionTransition(string(models.ActionStatePending))
	s.logger.Info("action proposed",
		zap.String("action_id", action.ID),
		zap.String("type", string(action.Type)),
		zap.Time("expires_at", action.ExpiresAt))
	return action, nil
}

// Get returns one of the caller's own actions.
func (s *ActionService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.PendingAction, error) {
	return s.owned(ctx, claims, id)
}

// List returns the caller's proposed actions, newest first.
func (s *ActionService) List(ctx context.Context, claims *models.JWTClaims, states []models.ActionState, limit int) ([]models.PendingAction, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	actions, err := s.repo.List(ctx, models.ActionFilter{
		RequesterID: claims.UserID,
		States:      states,
		Limit:       limit,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list actions")
	}
	return actions, nil
}

// Confirm moves a PENDING action to CONFIRMED and executes it. Exactly one
// of any set of concurrent confirms succeeds; the rest see ALREADY_HANDLED.
func (s *ActionService) Confirm(ctx context.Context, claims *models.JWTClaims, id string) (*dto.ConfirmActionResponse, error) {
	action, err := s.owned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if !s.authz.HasCapability(claims, action.SchoolID, CapActionConfirm) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this account cannot confirm actions")
	}

	switch action.State {
	case models.ActionStateExecuted:
		return nil, appErrors.ErrAlreadyExecuted
	case models.ActionStateExpired:
		return nil, appErrors.ErrExpired
	case models.ActionStateCancelled:
		return nil, appErrors.Clone(appErrors.ErrConflict, "action was cancelled")
	case models.ActionStateConfirmed:
		return nil, appErrors.ErrAlreadyHandled
	}

	now := s.now().UTC()
	if action.Expired(now) {
		// Lazy expiry: flip the row if the sweeper has not reached it yet.
		if err := s.repo.Transition(ctx, id, models.ActionStatePending, models.ActionStateExpired); err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("lazy expire failed", zap.String("action_id", id), zap.Error(err))
		}
		s.metrics.RecordActionTransition(string(models.ActionStateExpired))
		return nil, appErrors.ErrExpired
	}

	if err := s.repo.ConfirmPending(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either a concurrent confirm won the transition or the window
			// closed between the expiry check above and this write.
			if latest, lerr := s.repo.GetByID(ctx, id); lerr == nil && latest.State == models.ActionStatePending {
				if err := s.repo.Transition(ctx, id, models.ActionStatePending, models.ActionStateExpired); err != nil && !errors.Is(err, sql.ErrNoRows) {
					s.logger.Warn("lazy expire failed", zap.String("action_id", id), zap.Error(err))
				}
				s.metrics.RecordActionTransition(string(models.ActionStateExpired))
				return nil, appErrors.ErrExpired
			}
			return nil, appErrors.ErrAlreadyHandled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm action")
	}
	s.recordAudit(ctx, claims, models.AuditActionActionConfirm, id)
	s.metrics.RecordActionTransition(string(models.ActionStateConfirmed))

	if err := s.execute(ctx, claims, action); err != nil {
		return nil, err
	}

	return &dto.ConfirmActionResponse{
		Message: fmt.Sprintf("Action executed: %s", action.Summary),
		State:   models.ActionStateExecuted,
	}, nil
}

// execute re-validates and applies a freshly confirmed action. A failed
// apply leaves the action CONFIRMED so the failure is visible and the write
// is known not to have happened.
func (s *ActionService) execute(ctx context.Context, claims *models.JWTClaims, action *models.PendingAction) error {
	if !s.authz.HasCapability(claims, action.SchoolID, CapActionExecute) {
		return appErrors.Clone(appErrors.ErrForbidden, "this account cannot execute actions")
	}
	// The window can close between the confirm-time check and reaching the
	// privileged store; an expired action must never execute.
	if action.Expired(s.now().UTC()) {
		return appErrors.ErrExpired
	}

	if err := s.executor.Execute(ctx, action); err != nil {
		s.logger.Error("action apply failed",
			zap.String("action_id", action.ID),
			zap.String("type", string(action.Type)),
			zap.Error(err))
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "action execution failed")
	}

	if err := s.repo.MarkExecuted(ctx, action.ID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrAlreadyExecuted
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalise action")
	}

	s.recordAudit(ctx, claims, models.AuditActionActionExecute, action.ID)
	s.metrics.RecordActionTransition(string(models.ActionStateExecuted))
	return nil
}

// Cancel withdraws a PENDING action. Cancelling an action that has already
// settled is a no-op that reports the settled state.
func (s *ActionService) Cancel(ctx context.Context, claims *models.JWTClaims, id string) (*dto.CancelActionResponse, error) {
	action, err := s.owned(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	if action.State == models.ActionStatePending {
		err := s.repo.Transition(ctx, id, models.ActionStatePending, models.ActionStateCancelled)
		switch {
		case err == nil:
			s.recordAudit(ctx, claims, models.AuditActionActionCancel, id)
			s.metrics.RecordActionTransition(string(models.ActionStateCancelled))
			return &dto.CancelActionResponse{Message: "action cancelled", State: models.ActionStateCancelled}, nil
		case errors.Is(err, sql.ErrNoRows):
			// Lost a race with a confirm or the sweeper; report where the
			// action actually ended up.
			if action, err = s.owned(ctx, claims, id); err != nil {
				return nil, err
			}
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel action")
		}
	}

	return &dto.CancelActionResponse{
		Message: fmt.Sprintf("action already settled as %s", action.State),
		State:   action.State,
	}, nil
}

// SweepExpired garbage-collects overdue PENDING actions. Wired to the
// background sweeper; correctness never depends on it because confirm
// checks expiry itself.
func (s *ActionService) SweepExpired(ctx context.Context) (int, error) {
	count, err := s.repo.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSweep(count)
	return count, nil
}

func (s *ActionService) owned(ctx context.Context, claims *models.JWTClaims, id string) (*models.PendingAction, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	action, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "action not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load action")
	}
	// Only the requester may see or settle their proposal.
	if action.RequesterID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "action not found")
	}
	return action, nil
}

func (s *ActionService) recordAudit(ctx context.Context, claims *models.JWTClaims, auditAction, resourceID string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     auditAction,
		Resource:   "pending_action",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}
}
