package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nyumba/billing-engine/billing"
	"github.com/nyumba/billing-engine/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const testTenant = billing.TenantID("tenant-1")

type testEngine struct {
	store     *store.Memory
	ledger    *billing.CycleLedger
	allocator *billing.PaymentAllocator
	auditor   *billing.Auditor
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	mem := store.NewMemory()
	locks := billing.NewTenantLocks()
	validator := billing.NewReadingValidator(decimal.Zero)

	e := &testEngine{
		store:     mem,
		ledger:    billing.NewCycleLedger(mem, validator, nil, locks),
		allocator: billing.NewPaymentAllocator(mem, nil, locks),
		auditor:   billing.NewAuditor(mem, locks),
	}

	err := mem.UpsertTenant(context.Background(), billing.Tenant{
		ID:     testTenant,
		Name:   "Asha Mwangi",
		Status: billing.TenantActive,
	})
	require.NoError(t, err)
	return e
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func period(year int, month time.Month) billing.Period {
	return billing.NewPeriod(year, month)
}

// createCycle records a reading with rate 50 and standing charge 100, the
// tariff used throughout these tests.
func (e *testEngine) createCycle(t *testing.T, p billing.Period, currentReading float64) *billing.BillingCycle {
	t.Helper()

	cycle, _, err := e.ledger.CreateCycle(context.Background(), billing.CreateCycleParams{
		TenantID:       testTenant,
		Period:         p,
		CurrentReading: dec(currentReading),
		RatePerUnit:    dec(50),
		StandingCharge: dec(100),
		DueDate:        time.Date(p.Year, p.Month, 28, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return cycle
}

func (e *testEngine) pay(t *testing.T, cycleID billing.CycleID, amount float64) *billing.Payment {
	t.Helper()

	payment, err := e.allocator.RecordPayment(context.Background(), billing.RecordPaymentParams{
		TenantID:    testTenant,
		CycleID:     cycleID,
		Amount:      dec(amount),
		PaymentDate: time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC),
		Method:      billing.MethodMpesa,
	})
	require.NoError(t, err)
	return payment
}

func (e *testEngine) getCycle(t *testing.T, id billing.CycleID) *billing.BillingCycle {
	t.Helper()

	cycle, err := e.ledger.GetCycle(context.Background(), id)
	require.NoError(t, err)
	return cycle
}

// requireAmount fails with both values rendered when a decimal comparison
// misses; decimal.Decimal equality via == is not meaningful.
func requireAmount(t *testing.T, expected float64, actual decimal.Decimal) {
	t.Helper()
	require.True(t, actual.Equal(dec(expected)), "expected %v, got %s", expected, actual)
}
