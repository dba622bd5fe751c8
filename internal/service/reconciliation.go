package service

import "github.com/noah-isme/sma-advisor-api/internal/models"

// TotalsPair holds two labeled totals expected to be equal by construction.
type TotalsPair struct {
	LabelA string
	ValueA models.Money
	LabelB string
	ValueB models.Money
}

// ReconciliationEngine compares independently derived totals. It only
// computes: every pair produces a result, nothing is filtered or
// summarised, and the tolerance is exactly zero.
type ReconciliationEngine struct{}

// NewReconciliationEngine constructs the engine.
func NewReconciliationEngine() *ReconciliationEngine {
	return &ReconciliationEngine{}
}

// Reconcile returns one result per pair. Arithmetic is integer minor-unit,
// so a discrepancy is exact: any nonzero value marks the pair invalid.
func (e *ReconciliationEngine) Reconcile(pairs []TotalsPair) []models.ReconciliationResult {
	results := make([]models.ReconciliationResult, 0, len(pairs))
	for _, pair := range pairs {
		diff := pair.ValueA - pair.ValueB
		results = append(results, models.ReconciliationResult{
			SourceALabel: pair.LabelA,
			SourceAValue: pair.ValueA,
			SourceBLabel: pair.LabelB,
			SourceBValue: pair.ValueB,
			Discrepancy:  diff,
			IsValid:      diff == 0,
		})
	}
	return results
}
