package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

type financeStoreStub struct {
	fees         *models.FeesSection
	staff        *models.StaffSection
	ledgerTotal  models.Money
	salaryLedger models.Money
	perClass     []models.ClassFees

	feesErr error
}

func (s *financeStoreStub) FeesSection(_ context.Context, _ models.QueryScope, _ int) (*models.FeesSection, error) {
	if s.feesErr != nil {
		return nil, s.feesErr
	}
	return s.fees, nil
}

func (s *financeStoreStub) StaffSection(_ context.Context, _ models.QueryScope) (*models.StaffSection, error) {
	return s.staff, nil
}

func (s *financeStoreStub) FeeLedgerTotal(_ context.Context, _ string) (models.Money, error) {
	return s.ledgerTotal, nil
}

func (s *financeStoreStub) FeeCollectedByClass(_ context.Context, _ models.QueryScope, _ int) ([]models.ClassFees, error) {
	return s.perClass, nil
}

func (s *financeStoreStub) SalaryLedgerTotal(_ context.Context, _ string) (models.Money, error) {
	return s.salaryLedger, nil
}

func balancedFinanceStore() *financeStoreStub {
	return &financeStoreStub{
		fees: &models.FeesSection{
			Expected:    84000000,
			Collected:   61250000,
			Outstanding: 22750000,
		},
		staff: &models.StaffSection{
			SalaryExpected: 12000000,
			SalaryPaid:     9000000,
		},
		ledgerTotal:  61250000,
		salaryLedger: 9000000,
		perClass: []models.ClassFees{
			{ClassName: "Class 8", Expected: 42000000, Collected: 30000000},
			{ClassName: "Class 9", Expected: 42000000, Collected: 31250000},
		},
	}
}

func TestFinanceSnapshotComputesTotals(t *testing.T) {
	store := balancedFinanceStore()
	svc := NewFinanceService(store, nil, NewRoleAuthorizer(), nil)

	snapshot, err := svc.Snapshot(context.Background(), claimsFor(models.RoleAccountant, "school-1"))
	require.NoError(t, err)
	require.Equal(t, "school-1", snapshot.SchoolID)
	require.Equal(t, models.Money(84000000), snapshot.Fees.Expected)
	require.Equal(t, models.Money(22750000), snapshot.Fees.Remaining)
	require.Len(t, snapshot.Fees.PerClass, 2)
	require.Equal(t, models.Money(3000000), snapshot.Salaries.Remaining)

	require.Len(t, snapshot.Reconciliations, 2)
	for _, rec := range snapshot.Reconciliations {
		require.True(t, rec.IsValid)
		require.Equal(t, models.Money(0), rec.Discrepancy)
	}
}

func TestFinanceSnapshotReportsLedgerMismatch(t *testing.T) {
	store := balancedFinanceStore()
	store.ledgerTotal = 61250100

	svc := NewFinanceService(store, nil, NewRoleAuthorizer(), nil)
	snapshot, err := svc.Snapshot(context.Background(), claimsFor(models.RoleAdmin, "school-1"))
	require.NoError(t, err)

	// A one-rupee ledger drift is still a mismatch; there is no tolerance.
	rec := snapshot.Reconciliations[0]
	require.False(t, rec.IsValid)
	require.Equal(t, models.Money(100), rec.Discrepancy)
	require.Equal(t, "fee ledger total", rec.SourceALabel)
	require.Equal(t, "fee payments total", rec.SourceBLabel)
}

func TestFinanceSnapshotReportsSalaryLedgerMismatch(t *testing.T) {
	store := balancedFinanceStore()
	store.salaryLedger = 9000500

	svc := NewFinanceService(store, nil, NewRoleAuthorizer(), nil)
	snapshot, err := svc.Snapshot(context.Background(), claimsFor(models.RoleAdmin, "school-1"))
	require.NoError(t, err)

	rec := snapshot.Reconciliations[1]
	require.False(t, rec.IsValid)
	require.Equal(t, models.Money(500), rec.Discrepancy)
	require.Equal(t, "salary ledger total", rec.SourceALabel)
}

func TestFinanceSnapshotForbiddenForTeacher(t *testing.T) {
	svc := NewFinanceService(balancedFinanceStore(), nil, NewRoleAuthorizer(), nil)

	_, err := svc.Snapshot(context.Background(), claimsFor(models.RoleTeacher, "school-1"))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestFinanceSnapshotUnavailableWhenReadFails(t *testing.T) {
	store := balancedFinanceStore()
	store.feesErr = context.DeadlineExceeded

	svc := NewFinanceService(store, nil, NewRoleAuthorizer(), nil)
	_, err := svc.Snapshot(context.Background(), claimsFor(models.RoleAdmin, "school-1"))
	require.True(t, appErrors.Is(err, appErrors.ErrDataUnavailable))
}

func TestFinanceExportCSV(t *testing.T) {
	svc := NewFinanceService(balancedFinanceStore(), nil, NewRoleAuthorizer(), nil)

	body, contentType, filename, err := svc.Export(context.Background(), claimsFor(models.RoleAccountant, "school-1"), "csv")
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)
	require.True(t, strings.HasPrefix(filename, "finance-snapshot-"))
	require.True(t, strings.HasSuffix(filename, ".csv"))

	rendered := string(body)
	require.Contains(t, rendered, "Section,Item,Expected,Paid,Remaining")
	require.Contains(t, rendered, "Class 8")
	require.Contains(t, rendered, "Salaries")
	require.Contains(t, rendered, "MATCH")
}

func TestFinanceExportPDF(t *testing.T) {
	svc := NewFinanceService(balancedFinanceStore(), nil, NewRoleAuthorizer(), nil)

	body, contentType, filename, err := svc.Export(context.Background(), claimsFor(models.RoleAccountant, "school-1"), "pdf")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", contentType)
	require.True(t, strings.HasPrefix(filename, "finance-snapshot-"))
	require.True(t, strings.HasSuffix(filename, ".pdf"))
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestFinanceExportRejectsUnknownFormat(t *testing.T) {
	svc := NewFinanceService(balancedFinanceStore(), nil, NewRoleAuthorizer(), nil)

	_, _, _, err := svc.Export(context.Background(), claimsFor(models.RoleAdmin, "school-1"), "xlsx")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
