package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

func TestReconcileMatchingTotals(t *testing.T) {
	engine := NewReconciliationEngine()

	results := engine.Reconcile([]TotalsPair{{
		LabelA: "fee ledger total",
		ValueA: models.Money(84000000),
		LabelB: "fee payments total",
		ValueB: models.Money(84000000),
	}})

	require.Len(t, results, 1)
	require.True(t, results[0].IsValid)
	require.Equal(t, models.Money(0), results[0].Discrepancy)
}

func TestReconcileMismatchIsExact(t *testing.T) {
	engine := NewReconciliationEngine()

	// ₹8,40,000.00 against ₹8,37,500.00.
	results := engine.Reconcile([]TotalsPair{{
		LabelA: "fee ledger total",
		ValueA: models.Money(84000000),
		LabelB: "fee payments total",
		ValueB: models.Money(83750000),
	}})

	require.Len(t, results, 1)
	require.False(t, results[0].IsValid)
	require.Equal(t, models.Money(250000), results[0].Discrepancy)
	require.Equal(t, "₹2,500.00", results[0].Discrepancy.Format())
	require.Equal(t, "₹8,40,000.00", results[0].SourceAValue.Format())
	require.Equal(t, "₹8,37,500.00", results[0].SourceBValue.Format())
}

func TestReconcileOnePaisaIsInvalid(t *testing.T) {
	engine := NewReconciliationEngine()

	results := engine.Reconcile([]TotalsPair{{
		LabelA: "fee ledger total",
		ValueA: models.Money(100001),
		LabelB: "fee payments total",
		ValueB: models.Money(100000),
	}})

	require.False(t, results[0].IsValid)
	require.Equal(t, models.Money(1), results[0].Discrepancy)
}

func TestReconcileNegativeDiscrepancyPreserved(t *testing.T) {
	engine := NewReconciliationEngine()

	results := engine.Reconcile([]TotalsPair{{
		LabelA: "fee ledger total",
		ValueA: models.Money(50000),
		LabelB: "fee payments total",
		ValueB: models.Money(75000),
	}})

	require.False(t, results[0].IsValid)
	require.Equal(t, models.Money(-25000), results[0].Discrepancy)
}

func TestReconcileEveryPairReported(t *testing.T) {
	engine := NewReconciliationEngine()

	results := engine.Reconcile([]TotalsPair{
		{LabelA: "a", ValueA: 1, LabelB: "b", ValueB: 1},
		{LabelA: "c", ValueA: 2, LabelB: "d", ValueB: 3},
	})

	require.Len(t, results, 2)
	require.True(t, results[0].IsValid)
	require.False(t, results[1].IsValid)
}
