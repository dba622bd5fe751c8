package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
	"github.com/noah-isme/sma-advisor-api/pkg/export"
)

const snapshotClassLimit = 50

// financeStore is the read surface the snapshot needs.
type financeStore interface {
	FeesSection(ctx context.Context, scope models.QueryScope, rowLimit int) (*models.FeesSection, error)
	StaffSection(ctx context.Context, scope models.QueryScope) (*models.StaffSection, error)
	FeeLedgerTotal(ctx context.Context, schoolID string) (models.Money, error)
	FeeCollectedByClass(ctx context.Context, scope models.QueryScope, rowLimit int) ([]models.ClassFees, error)
	SalaryLedgerTotal(ctx context.Context, schoolID string) (models.Money, error)
}

// FinanceService computes financial snapshots. Every snapshot is derived
// from the underlying records at call time; there is no stored total to
// drift out of date.
type FinanceService struct {
	repo   financeStore
	engine *ReconciliationEngine
	authz  Authorizer
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
	now    func() time.Time
}

// NewFinanceService constructs the service.
func NewFinanceService(repo financeStore, engine *ReconciliationEngine, authz Authorizer, logger *zap.Logger) *FinanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewReconciliationEngine()
	}
	return &FinanceService{
		repo:   repo,
		engine: engine,
		authz:  authz,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot computes the school's current fee and payroll position, with the
// ledger cross-check included verbatim.
func (s *FinanceService) Snapshot(ctx context.Context, claims *models.JWTClaims) (*models.FinanceSnapshot, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.authz.HasCapability(claims, claims.SchoolID, CapFinanceSnapshot) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "financial snapshots are not permitted for this account")
	}

	scope := models.QueryScope{SchoolID: claims.SchoolID}

	fees, err := s.repo.FeesSection(ctx, scope, snapshotClassLimit)
	if err != nil {
		return nil, s.unavailable("fees", err)
	}
	staff, err := s.repo.StaffSection(ctx, scope)
	if err != nil {
		return nil, s.unavailable("staff", err)
	}
	ledgerTotal, err := s.repo.FeeLedgerTotal(ctx, claims.SchoolID)
	if err != nil {
		return nil, s.unavailable("fee ledger", err)
	}
	perClass, err := s.repo.FeeCollectedByClass(ctx, scope, snapshotClassLimit)
	if err != nil {
		return nil, s.unavailable("class collections", err)
	}
	salaryLedgerTotal, err := s.repo.SalaryLedgerTotal(ctx, claims.SchoolID)
	if err != nil {
		return nil, s.unavailable("salary ledger", err)
	}

	reconciliations := s.engine.Reconcile([]TotalsPair{
		{
			LabelA: "fee ledger total",
			ValueA: ledgerTotal,
			LabelB: "fee payments total",
			ValueB: fees.Collected,
		},
		{
			LabelA: "salary ledger total",
			ValueA: salaryLedgerTotal,
			LabelB: "salary payments total",
			ValueB: staff.SalaryPaid,
		},
	})

	return &models.FinanceSnapshot{
		AsOfDate: s.now().UTC(),
		SchoolID: claims.SchoolID,
		Fees: models.FeeTotals{
			Expected:  fees.Expected,
			Paid:      fees.Collected,
			Remaining: fees.Outstanding,
			PerClass:  perClass,
		},
		Salaries: models.SalaryTotals{
			Expected:  staff.SalaryExpected,
			Paid:      staff.SalaryPaid,
			Remaining: staff.SalaryExpected - staff.SalaryPaid,
		},
		Reconciliations: reconciliations,
	}, nil
}

// Export renders a snapshot as CSV or PDF and returns body, content type and
// a suggested filename.
func (s *FinanceService) Export(ctx context.Context, claims *models.JWTClaims, format string) ([]byte, string, string, error) {
	snapshot, err := s.Snapshot(ctx, claims)
	if err != nil {
		return nil, "", "", err
	}

	dataset := snapshotDataset(snapshot)
	stamp := snapshot.AsOfDate.Format("2006-01-02")

	switch format {
	case "csv":
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return body, "text/csv", fmt.Sprintf("finance-snapshot-%s.csv", stamp), nil
	case "pdf":
		body, err := s.pdf.Render(dataset, fmt.Sprintf("Finance Snapshot %s", stamp))
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return body, "application/pdf", fmt.Sprintf("finance-snapshot-%s.pdf", stamp), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *FinanceService) unavailable(source string, err error) error {
	s.logger.Error("snapshot read failed", zap.String("source", source), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrDataUnavailable.Code, appErrors.ErrDataUnavailable.Status, appErrors.ErrDataUnavailable.Message)
}

func snapshotDataset(snapshot *models.FinanceSnapshot) export.Dataset {
	headers := []string{"Section", "Item", "Expected", "Paid", "Remaining"}
	rows := []map[string]string{
		{
			"Section":   "Fees",
			"Item":      "Total",
			"Expected":  snapshot.Fees.Expected.Format(),
			"Paid":      snapshot.Fees.Paid.Format(),
			"Remaining": snapshot.Fees.Remaining.Format(),
		},
	}
	for _, class := range snapshot.Fees.PerClass {
		rows = append(rows, map[string]string{
			"Section":   "Fees",
			"Item":      class.ClassName,
			"Expected":  class.Expected.Format(),
			"Paid":      class.Collected.Format(),
			"Remaining": (class.Expected - class.Collected).Format(),
		})
	}
	rows = append(rows, map[string]string{
		"Section":   "Salaries",
		"Item":      "Total",
		"Expected":  snapshot.Salaries.Expected.Format(),
		"Paid":      snapshot.Salaries.Paid.Format(),
		"Remaining": snapshot.Salaries.Remaining.Format(),
	})
	for _, rec := range snapshot.Reconciliations {
		status := "MATCH"
		if !rec.IsValid {
			status = "MISMATCH"
		}
		rows = append(rows, map[string]string{
			"Section":   "Reconciliation",
			"Item":      fmt.Sprintf("%s vs %s (%s)", rec.SourceALabel, rec.SourceBLabel, status),
			"Expected":  rec.SourceAValue.Format(),
			"Paid":      rec.SourceBValue.Format(),
			"Remaining": rec.Discrepancy.Format(),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
