package models

import (
	"fmt"
	"strings"
	"time"
)

// Money is an amount in integer minor units (paise). Monetary values are
// never represented as binary floating point so reconciliation differences
// are exact.
type Money int64

// Rupees returns the whole-rupee part and the remaining paise.
func (m Money) Rupees() (int64, int64) {
	v := int64(m)
	neg := v < 0
	if neg {
		v = -v
	}
	r, p := v/100, v%100
	if neg {
		r = -r
	}
	return r, p
}

// Format renders the amount with Indian digit grouping, e.g. "₹8,40,000.00".
func (m Money) Format() string {
	rupees, paise := m.Rupees()
	sign := ""
	if m < 0 {
		sign = "-"
		rupees = -rupees
	}
	digits := fmt.Sprintf("%d", rupees)
	var grouped string
	if len(digits) > 3 {
		head := digits[:len(digits)-3]
		tail := digits[len(digits)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	} else {
		grouped = digits
	}
	return fmt.Sprintf("%s₹%s.%02d", sign, grouped, paise)
}

// DataDomain identifies a verified record domain.
type DataDomain string

const (
	DomainEnrollment DataDomain = "enrollment"
	DomainAttendance DataDomain = "attendance"
	DomainFees       DataDomain = "fees"
	DomainStaff      DataDomain = "staff"
)

// QueryScope bounds a verified data fetch to a school and optional date range.
type QueryScope struct {
	SchoolID string
	DateFrom *time.Time
	DateTo   *time.Time
}

// EnrollmentSection aggregates student enrollment figures.
type EnrollmentSection struct {
	Empty         bool         `json:"empty"`
	TotalStudents int          `json:"total_students"`
	ActiveStudents int         `json:"active_students"`
	ByClass       []ClassCount `json:"by_class,omitempty"`
}

// ClassCount is a bounded per-class detail row. Classes are referred to by
// display name only; internal identifiers never reach the generator.
type ClassCount struct {
	ClassName string `json:"class_name" db:"class_name"`
	Count     int    `json:"count" db:"count"`
}

// AttendanceSection aggregates attendance figures for the scope.
type AttendanceSection struct {
	Empty        bool    `json:"empty"`
	PresentCount int     `json:"present_count"`
	AbsentCount  int     `json:"absent_count"`
	LateCount    int     `json:"late_count"`
	Percentage   float64 `json:"percentage"`
}

// FeesSection aggregates fee figures for the scope.
type FeesSection struct {
	Empty       bool        `json:"empty"`
	Expected    Money       `json:"expected"`
	Collected   Money       `json:"collected"`
	Outstanding Money       `json:"outstanding"`
	ByClass     []ClassFees `json:"by_class,omitempty"`
}

// ClassFees is a bounded per-class fee detail row.
type ClassFees struct {
	ClassName string `json:"class_name" db:"class_name"`
	Expected  Money  `json:"expected" db:"expected"`
	Collected Money  `json:"collected" db:"collected"`
}

// StaffSection aggregates staff and payroll figures.
type StaffSection struct {
	Empty          bool  `json:"empty"`
	TotalStaff     int   `json:"total_staff"`
	SalaryExpected Money `json:"salary_expected"`
	SalaryPaid     Money `json:"salary_paid"`
}

// VerifiedDataBundle is an immutable snapshot of freshly computed record
// aggregates. It is created per query and discarded once the answer is
// assembled; it is never cached across queries. A requested domain is always
// present with its Empty flag set when no records matched, so omission can
// never be read as "no data was checked".
type VerifiedDataBundle struct {
	AsOf  time.Time  `json:"as_of"`
	Scope QueryScope `json:"-"`

	Enrollment *EnrollmentSection `json:"enrollment,omitempty"`
	Attendance *AttendanceSection `json:"attendance,omitempty"`
	Fees       *FeesSection       `json:"fees,omitempty"`
	Staff      *StaffSection      `json:"staff,omitempty"`

	Reconciliations []ReconciliationResult `json:"reconciliations,omitempty"`
}

// Domains lists the domains actually present in the bundle.
func (b *VerifiedDataBundle) Domains() []DataDomain {
	var out []DataDomain
	if b.Enrollment != nil {
		out = append(out, DomainEnrollment)
	}
	if b.Attendance != nil {
		out = append(out, DomainAttendance)
	}
	if b.Fees != nil {
		out = append(out, DomainFees)
	}
	if b.Staff != nil {
		out = append(out, DomainStaff)
	}
	return out
}

// Label is the display name used when a domain is named in answer text.
func (d DataDomain) Label() string {
	switch d {
	case DomainEnrollment:
		return "Enrollment"
	case DomainAttendance:
		return "Attendance"
	case DomainFees:
		return "Fees"
	case DomainStaff:
		return "Staff"
	}
	return string(d)
}

// AllEmpty reports whether every fetched domain carried zero records.
func (b *VerifiedDataBundle) AllEmpty() bool {
	any := false
	for _, d := range b.Domains() {
		any = true
		if !b.DomainEmpty(d) {
			return false
		}
	}
	return any
}

// DomainEmpty reports whether the named domain was fetched and found empty.
func (b *VerifiedDataBundle) DomainEmpty(domain DataDomain) bool {
	switch domain {
	case DomainEnrollment:
		return b.Enrollment != nil && b.Enrollment.Empty
	case DomainAttendance:
		return b.Attendance != nil && b.Attendance.Empty
	case DomainFees:
		return b.Fees != nil && b.Fees.Empty
	case DomainStaff:
		return b.Staff != nil && b.Staff.Empty
	}
	return false
}

// ReconciliationResult compares two independently derived totals for the
// same quantity. Tolerance is exactly zero: any nonzero discrepancy marks
// the pair invalid.
type ReconciliationResult struct {
	SourceALabel string `json:"source_a_label"`
	SourceAValue Money  `json:"source_a_value"`
	SourceBLabel string `json:"source_b_label"`
	SourceBValue Money  `json:"source_b_value"`
	Discrepancy  Money  `json:"discrepancy"`
	IsValid      bool   `json:"is_valid"`
}
