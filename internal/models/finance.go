package models

import "time"

// FeeTotals summarises fee collection for a school.
type FeeTotals struct {
	Expected  Money       `json:"expected"`
	Paid      Money       `json:"paid"`
	Remaining Money       `json:"remaining"`
	PerClass  []ClassFees `json:"per_class"`
}

// SalaryTotals summarises staff payroll for a school.
type SalaryTotals struct {
	Expected  Money `json:"expected"`
	Paid      Money `json:"paid"`
	Remaining Money `json:"remaining"`
}

// FinanceSnapshot is computed fresh at call time, never served from a
// precomputed stored total.
type FinanceSnapshot struct {
	AsOfDate        time.Time              `json:"as_of_date"`
	SchoolID        string                 `json:"school_id"`
	Fees            FeeTotals              `json:"fees"`
	Salaries        SalaryTotals           `json:"salaries"`
	Reconciliations []ReconciliationResult `json:"reconciliations"`
}
