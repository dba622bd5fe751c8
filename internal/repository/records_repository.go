package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

// RecordsRepository runs the scoped, read-only aggregate queries behind the
// verified data fetcher. Every figure is computed at read time from the
// operational tables; nothing here consults a stored rollup or cache, and
// nothing here mutates state.
type RecordsRepository struct {
	db *sqlx.DB
}

// NewRecordsRepository constructs the repository.
func NewRecordsRepository(db *sqlx.DB) *RecordsRepository {
	return &RecordsRepository{db: db}
}

// EnrollmentSection aggregates student enrollment within the scope.
func (r *RecordsRepository) EnrollmentSection(ctx context.Context, scope models.QueryScope, rowLimit int) (*models.EnrollmentSection, error) {
	const totals = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE active) AS active FROM students WHERE school_id = $1`
	var agg struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := r.db.GetContext(ctx, &agg, totals, scope.SchoolID); err != nil {
		return nil, fmt.Errorf("enrollment totals: %w", err)
	}
	section := &models.EnrollmentSection{
		TotalStudents:  agg.Total,
		ActiveStudents: agg.Active,
	}
	if agg.Total == 0 {
		section.Empty = true
		return section, nil
	}

	byClass := fmt.Sprintf(`SELECT c.name AS class_name, COUNT(s.id) AS count
		FROM classes c
		LEFT JOIN students s ON s.class_id = c.id AND s.active
		WHERE c.school_id = $1
		GROUP BY c.name
		ORDER BY c.name
		LIMIT %d`, boundRowLimit(rowLimit))
	if err := r.db.SelectContext(ctx, &section.ByClass, byClass, scope.SchoolID); err != nil {
		return nil, fmt.Errorf("enrollment by class: %w", err)
	}
	return section, nil
}

// AttendanceSection aggregates attendance marks within the scope.
func (r *RecordsRepository) AttendanceSection(ctx context.Context, scope models.QueryScope) (*models.AttendanceSection, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE status = 'P') AS present,
		COUNT(*) FILTER (WHERE status = 'A') AS absent,
		COUNT(*) FILTER (WHERE status = 'L') AS late,
		COUNT(*) AS total
		FROM daily_attendances WHERE school_id = $1`
	args := []interface{}{scope.SchoolID}
	if scope.DateFrom != nil {
		args = append(args, *scope.DateFrom)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if scope.DateTo != nil {
		args = append(args, *scope.DateTo)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}

	var agg struct {
		Present int `db:"present"`
		Absent  int `db:"absent"`
		Late    int `db:"late"`
		Total   int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &agg, query, args...); err != nil {
		return nil, fmt.Errorf("attendance totals: %w", err)
	}
	section := &models.AttendanceSection{
		PresentCount: agg.Present,
		AbsentCount:  agg.Absent,
		LateCount:    agg.Late,
	}
	if agg.Total == 0 {
		section.Empty = true
		return section, nil
	}
	section.Percentage = float64(agg.Present) / float64(agg.Total) * 100
	return section, nil
}

// FeesSection aggregates expected and collected fees within the scope, with
// a bounded per-class breakdown.
func (r *RecordsRepository) FeesSection(ctx context.Context, scope models.QueryScope, rowLimit int) (*models.FeesSection, error) {
	expected, err := r.FeeExpectedTotal(ctx, scope.SchoolID)
	if err != nil {
		return nil, err
	}
	collected, payments, err := r.feeCollectedTotal(ctx, scope)
	if err != nil {
		return nil, err
	}
	section := &models.FeesSection{
		Expected:    expected,
		Collected:   collected,
		Outstanding: expected - collected,
	}
	if expected == 0 && payments == 0 {
		section.Empty = true
		return section, nil
	}

	byClass, err := r.FeeCollectedByClass(ctx, scope, rowLimit)
	if err != nil {
		return nil, err
	}
	section.ByClass = byClass
	return section, nil
}

// StaffSection aggregates headcount and payroll figures.
func (r *RecordsRepository) StaffSection(ctx context.Context, scope models.QueryScope) (*models.StaffSection, error) {
	const query = `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(monthly_salary) FILTER (WHERE active), 0) AS expected
		FROM staff WHERE school_id = $1`
	var agg struct {
		Total    int   `db:"total"`
		Expected int64 `db:"expected"`
	}
	if err := r.db.GetContext(ctx, &agg, query, scope.SchoolID); err != nil {
		return nil, fmt.Errorf("staff totals: %w", err)
	}
	section := &models.StaffSection{
		TotalStaff:     agg.Total,
		SalaryExpected: models.Money(agg.Expected),
	}
	if agg.Total == 0 {
		section.Empty = true
		return section, nil
	}

	paid, err := r.SalaryPaidTotal(ctx, scope)
	if err != nil {
		return nil, err
	}
	section.SalaryPaid = paid
	return section, nil
}

// FeeExpectedTotal sums the fee schedule for active students.
func (r *RecordsRepository) FeeExpectedTotal(ctx context.Context, schoolID string) (models.Money, error) {
	const query = `SELECT COALESCE(SUM(fs.annual_amount), 0)
		FROM fee_structures fs
		JOIN students s ON s.class_id = fs.class_id AND s.active
		WHERE fs.school_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, schoolID); err != nil {
		return 0, fmt.Errorf("fee expected total: %w", err)
	}
	return models.Money(total), nil
}

// FeeLedgerTotal sums the aggregate fee ledger. This total is derived
// independently of the per-payment records, which is what makes it a
// reconciliation source.
func (r *RecordsRepository) FeeLedgerTotal(ctx context.Context, schoolID string) (models.Money, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM fee_ledger WHERE school_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, schoolID); err != nil {
		return 0, fmt.Errorf("fee ledger total: %w", err)
	}
	return models.Money(total), nil
}

// FeeCollectedByClass breaks collections down per class, bounded by rowLimit.
func (r *RecordsRepository) FeeCollectedByClass(ctx context.Context, scope models.QueryScope, rowLimit int) ([]models.ClassFees, error) {
	args := []interface{}{scope.SchoolID}
	query := `SELECT c.name AS class_name,
		COALESCE((SELECT SUM(fs.annual_amount) FROM fee_structures fs JOIN students s ON s.class_id = fs.class_id AND s.active WHERE fs.class_id = c.id), 0) AS expected,
		COALESCE((SELECT SUM(fp.amount) FROM fee_payments fp WHERE fp.class_id = c.id`
	if scope.DateFrom != nil {
		args = append(args, *scope.DateFrom)
		query += fmt.Sprintf(" AND fp.paid_at >= $%d", len(args))
	}
	if scope.DateTo != nil {
		args = append(args, *scope.DateTo)
		query += fmt.Sprintf(" AND fp.paid_at <= $%d", len(args))
	}
	query += fmt.Sprintf(`), 0) AS collected
		FROM classes c
		WHERE c.school_id = $1
		ORDER BY c.name
		LIMIT %d`, boundRowLimit(rowLimit))

	var rows []models.ClassFees
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fees by class: %w", err)
	}
	return rows, nil
}

// SalaryLedgerTotal sums the aggregate salary ledger, the independent
// counterpart of SalaryPaidTotal for reconciliation.
func (r *RecordsRepository) SalaryLedgerTotal(ctx context.Context, schoolID string) (models.Money, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM salary_ledger WHERE school_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, schoolID); err != nil {
		return 0, fmt.Errorf("salary ledger total: %w", err)
	}
	return models.Money(total), nil
}

// SalaryPaidTotal sums salary payments within the scope.
func (r *RecordsRepository) SalaryPaidTotal(ctx context.Context, scope models.QueryScope) (models.Money, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM salary_payments WHERE school_id = $1`
	args := []interface{}{scope.SchoolID}
	if scope.DateFrom != nil {
		args = append(args, *scope.DateFrom)
		query += fmt.Sprintf(" AND paid_at >= $%d", len(args))
	}
	if scope.DateTo != nil {
		args = append(args, *scope.DateTo)
		query += fmt.Sprintf(" AND paid_at <= $%d", len(args))
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("salary paid total: %w", err)
	}
	return models.Money(total), nil
}

func (r *RecordsRepository) feeCollectedTotal(ctx context.Context, scope models.QueryScope) (models.Money, int, error) {
	query := `SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS row_count FROM fee_payments WHERE school_id = $1`
	args := []interface{}{scope.SchoolID}
	if scope.DateFrom != nil {
		args = append(args, *scope.DateFrom)
		query += fmt.Sprintf(" AND paid_at >= $%d", len(args))
	}
	if scope.DateTo != nil {
		args = append(args, *scope.DateTo)
		query += fmt.Sprintf(" AND paid_at <= $%d", len(args))
	}
	var agg struct {
		Total int64 `db:"total"`
		Rows  int   `db:"row_count"`
	}
	if err := r.db.GetContext(ctx, &agg, query, args...); err != nil {
		return 0, 0, fmt.Errorf("fee collected total: %w", err)
	}
	return models.Money(agg.Total), agg.Rows, nil
}

func boundRowLimit(limit int) int {
	if limit <= 0 || limit > 50 {
		return 20
	}
	return limit
}
