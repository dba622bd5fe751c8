package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

type recordsStore interface {
	EnrollmentSection(ctx context.Context, scope models.QueryScope, rowLimit int) (*models.EnrollmentSection, error)
	AttendanceSection(ctx context.Context, scope models.QueryScope) (*models.AttendanceSection, error)
	FeesSection(ctx context.Context, scope models.QueryScope, rowLimit int) (*models.FeesSection, error)
	StaffSection(ctx context.Context, scope models.QueryScope) (*models.StaffSection, error)
	FeeLedgerTotal(ctx context.Context, schoolID string) (models.Money, error)
}

// Fetcher assembles VerifiedDataBundles. Its Fetch signature takes domains
// and a scope only; it cannot accept a conversation session, which is what
// keeps memory out of the set of fact sources.
type Fetcher struct {
	repo     recordsStore
	engine   *ReconciliationEngine
	rowLimit int
	logger   *zap.Logger
	now      func() time.Time
}

// NewFetcher constructs a Fetcher.
func NewFetcher(repo recordsStore, engine *ReconciliationEngine, rowLimit int, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewReconciliationEngine()
	}
	return &Fetcher{repo: repo, engine: engine, rowLimit: rowLimit, logger: logger, now: time.Now}
}

// Fetch computes a fresh bundle for the requested domains. A domain whose
// read fails is marked empty rather than dropped or retried against stale
// data, so downstream code sees "nothing verifiable" and refuses.
func (f *Fetcher) Fetch(ctx context.Context, domains []models.DataDomain, scope models.QueryScope) *models.VerifiedDataBundle {
	bundle := &models.VerifiedDataBundle{
		AsOf:  f.now().UTC(),
		Scope: scope,
	}

	for _, domain := range domains {
		switch domain {
		case models.DomainEnrollment:
			section, err := f.repo.EnrollmentSection(ctx, scope, f.rowLimit)
			if err != nil {
				f.logger.Warn("enrollment read failed", zap.Error(err))
				section = &models.EnrollmentSection{Empty: true}
			}
			bundle.Enrollment = section
		case models.DomainAttendance:
			section, err := f.repo.AttendanceSection(ctx, scope)
			if err != nil {
				f.logger.Warn("attendance read failed", zap.Error(err))
				section = &models.AttendanceSection{Empty: true}
			}
			bundle.Attendance = section
		case models.DomainFees:
			section, err := f.repo.FeesSection(ctx, scope, f.rowLimit)
			if err != nil {
				f.logger.Warn("fees read failed", zap.Error(err))
				section = &models.FeesSection{Empty: true}
			}
			bundle.Fees = section
		case models.DomainStaff:
			section, err := f.repo.StaffSection(ctx, scope)
			if err != nil {
				f.logger.Warn("staff read failed", zap.Error(err))
				section = &models.StaffSection{Empty: true}
			}
			bundle.Staff = section
		}
	}

	if bundle.Fees != nil && !bundle.Fees.Empty {
		bundle.Reconciliations = append(bundle.Reconciliations, f.reconcileFees(ctx, bundle.Fees, scope)...)
	}

	return bundle
}

// reconcileFees compares the aggregate fee ledger with the sum of per-class
// collections. Both totals are derived independently; every result is
// attached to the bundle, valid or not.
func (f *Fetcher) reconcileFees(ctx context.Context, fees *models.FeesSection, scope models.QueryScope) []models.ReconciliationResult {
	ledgerTotal, err := f.repo.FeeLedgerTotal(ctx, scope.SchoolID)
	if err != nil {
		f.logger.Warn("fee ledger read failed", zap.Error(err))
		return nil
	}

	return f.engine.Reconcile([]TotalsPair{{
		LabelA: "fee ledger total",
		ValueA: ledgerTotal,
		LabelB: "sum of class-wise collections",
		ValueB: fees.Collected,
	}})
}
