package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

type recordsStoreStub struct {
	enrollment *models.EnrollmentSection
	attendance *models.AttendanceSection
	fees       *models.FeesSection
	staff      *models.StaffSection
	ledger     models.Money

	enrollmentErr error
	ledgerErr     error

	scopes []models.QueryScope
}

func (s *recordsStoreStub) EnrollmentSection(_ context.Context, scope models.QueryScope, _ int) (*models.EnrollmentSection, error) {
	s.scopes = append(s.scopes, scope)
	if s.enrollmentErr != nil {
		return nil, s.enrollmentErr
	}
	return s.enrollment, nil
}

func (s *recordsStoreStub) AttendanceSection(_ context.Context, scope models.QueryScope) (*models.AttendanceSection, error) {
	s.scopes = append(s.scopes, scope)
	return s.attendance, nil
}

func (s *recordsStoreStub) FeesSection(_ context.Context, scope models.QueryScope, _ int) (*models.FeesSection, error) {
	s.scopes = append(s.scopes, scope)
	return s.fees, nil
}

func (s *recordsStoreStub) StaffSection(_ context.Context, scope models.QueryScope) (*models.StaffSection, error) {
	s.scopes = append(s.scopes, scope)
	return s.staff, nil
}

func (s *recordsStoreStub) FeeLedgerTotal(_ context.Context, _ string) (models.Money, error) {
	if s.ledgerErr != nil {
		return 0, s.ledgerErr
	}
	return s.ledger, nil
}

func TestFetcherFetchesOnlyRequestedDomains(t *testing.T) {
	store := &recordsStoreStub{
		enrollment: &models.EnrollmentSection{TotalStudents: 342},
		attendance: &models.AttendanceSection{PresentCount: 90},
	}
	fetcher := NewFetcher(store, nil, 20, nil)

	bundle := fetcher.Fetch(context.Background(),
		[]models.DataDomain{models.DomainEnrollment},
		models.QueryScope{SchoolID: "school-1"})

	require.NotNil(t, bundle.Enrollment)
	require.Nil(t, bundle.Attendance)
	require.Nil(t, bundle.Fees)
	require.Nil(t, bundle.Staff)
	require.Equal(t, []models.DataDomain{models.DomainEnrollment}, bundle.Domains())
	for _, scope := range store.scopes {
		require.Equal(t, "school-1", scope.SchoolID)
	}
}

func TestFetcherMarksFailedDomainEmpty(t *testing.T) {
	store := &recordsStoreStub{
		enrollmentErr: context.DeadlineExceeded,
		staff:         &models.StaffSection{TotalStaff: 24},
	}
	fetcher := NewFetcher(store, nil, 20, nil)

	bundle := fetcher.Fetch(context.Background(),
		[]models.DataDomain{models.DomainEnrollment, models.DomainStaff},
		models.QueryScope{SchoolID: "school-1"})

	// A failed read never falls back to stale data; the domain reads as
	// having nothing verifiable.
	require.True(t, bundle.DomainEmpty(models.DomainEnrollment))
	require.False(t, bundle.DomainEmpty(models.DomainStaff))
	require.False(t, bundle.AllEmpty())
}

func TestFetcherAttachesFeeReconciliation(t *testing.T) {
	store := &recordsStoreStub{
		fees:   &models.FeesSection{Expected: 84000000, Collected: 61250000},
		ledger: 61250100,
	}
	fetcher := NewFetcher(store, nil, 20, nil)

	bundle := fetcher.Fetch(context.Background(),
		[]models.DataDomain{models.DomainFees},
		models.QueryScope{SchoolID: "school-1"})

	require.Len(t, bundle.Reconciliations, 1)
	rec := bundle.Reconciliations[0]
	require.False(t, rec.IsValid)
	require.Equal(t, models.Money(100), rec.Discrepancy)
	require.Equal(t, "fee ledger total", rec.SourceALabel)
}

func TestFetcherSkipsReconciliationForEmptyFees(t *testing.T) {
	store := &recordsStoreStub{
		fees: &models.FeesSection{Empty: true},
	}
	fetcher := NewFetcher(store, nil, 20, nil)

	bundle := fetcher.Fetch(context.Background(),
		[]models.DataDomain{models.DomainFees},
		models.QueryScope{SchoolID: "school-1"})

	require.Empty(t, bundle.Reconciliations)
	require.True(t, bundle.AllEmpty())
}
