package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumba/billing-engine/billing"
)

// =============================================================================
// CYCLE CREATION
// =============================================================================

func TestCreateCycle_FirstCycleStartsFromZero(t *testing.T) {
	// GIVEN: A tenant with no billing history
	// WHEN: Recording the first reading
	// THEN: Previous reading and opening balance both default to zero

	e := newTestEngine(t)

	cycle := e.createCycle(t, period(2025, time.January), 10)

	requireAmount(t, 0, cycle.PreviousReading)
	requireAmount(t, 10, cycle.UnitsUsed)
	requireAmount(t, 600, cycle.BillAmount) // 10*50 + 100
	requireAmount(t, 0, cycle.PreviousBalance)
	requireAmount(t, 600, cycle.CurrentBalance)
	assert.Equal(t, billing.StatusOutstanding, cycle.Status())
}

func TestCreateCycle_ThreeMonthLedger(t *testing.T) {
	// GIVEN: The worked three-month history: bill, pay in full, bill, overpay,
	//        bill again
	// THEN: Balances carry forward exactly, including the credit

	e := newTestEngine(t)

	jan := e.createCycle(t, period(2025, time.January), 10)
	requireAmount(t, 600, jan.CurrentBalance)

	e.pay(t, jan.ID, 600)
	requireAmount(t, 0, e.getCycle(t, jan.ID).CurrentBalance)

	feb := e.createCycle(t, period(2025, time.February), 25)
	requireAmount(t, 10, feb.PreviousReading)
	requireAmount(t, 15, feb.UnitsUsed)
	requireAmount(t, 850, feb.BillAmount) // 15*50 + 100
	requireAmount(t, 0, feb.PreviousBalance)
	requireAmount(t, 850, feb.CurrentBalance)

	// Overpayment becomes a credit, not an error.
	e.pay(t, feb.ID, 1000)
	febAfter := e.getCycle(t, feb.ID)
	requireAmount(t, -150, febAfter.CurrentBalance)
	assert.Equal(t, billing.StatusCredited, febAfter.Status())

	mar := e.createCycle(t, period(2025, time.March), 30)
	requireAmount(t, -150, mar.PreviousBalance)
	requireAmount(t, 5, mar.UnitsUsed)
	requireAmount(t, 350, mar.BillAmount)
	requireAmount(t, 200, mar.CurrentBalance) // -150 + 350
}

func TestCreateCycle_DuplicatePeriodRejected(t *testing.T) {
	e := newTestEngine(t)

	first := e.createCycle(t, period(2025, time.January), 10)

	_, _, err := e.ledger.CreateCycle(context.Background(), billing.CreateCycleParams{
		TenantID:       testTenant,
		Period:         period(2025, time.January),
		CurrentReading: dec(12),
		RatePerUnit:    dec(50),
		StandingCharge: dec(100),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrDuplicateCycle))

	var dup *billing.DuplicateCycleError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID, dup.Existing)
}

func TestCreateCycle_UnknownTenantRejected(t *testing.T) {
	e := newTestEngine(t)

	_, _, err := e.ledger.CreateCycle(context.Background(), billing.CreateCycleParams{
		TenantID:       "nobody",
		Period:         period(2025, time.January),
		CurrentReading: dec(10),
		RatePerUnit:    dec(50),
		StandingCharge: dec(100),
	})
	assert.True(t, errors.Is(err, billing.ErrTenantNotFound))
}

func TestCreateCycle_RollbackReadingRejected(t *testing.T) {
	// GIVEN: A January cycle ending at reading 10
	// WHEN: February's reading comes in below it
	// THEN: The cycle is rejected and nothing is written

	e := newTestEngine(t)
	e.createCycle(t, period(2025, time.January), 10)

	_, _, err := e.ledger.CreateCycle(context.Background(), billing.CreateCycleParams{
		TenantID:       testTenant,
		Period:         period(2025, time.February),
		CurrentReading: dec(8),
		RatePerUnit:    dec(50),
		StandingCharge: dec(100),
	})
	assert.True(t, errors.Is(err, billing.ErrInvalidReading))

	cycles, err := e.ledger.ListCyclesForTenant(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}

func TestCreateCycle_NegativeChargesRejected(t *testing.T) {
	e := newTestEngine(t)

	_, _, err := e.ledger.CreateCycle(context.Background(), billing.CreateCycleParams{
		TenantID:       testTenant,
		Period:         period(2025, time.January),
		CurrentReading: dec(10),
		RatePerUnit:    dec(-1),
		StandingCharge: dec(100),
	})
	assert.True(t, errors.Is(err, billing.ErrInvalidCharge))
}

func TestCreateCycle_BackDatedInsertRelinksChain(t *testing.T) {
	// GIVEN: January and March already billed
	// WHEN: February is inserted between them
	// THEN: March's previous balance chains onto February, not January

	e := newTestEngine(t)

	jan := e.createCycle(t, period(2025, time.January), 10)
	requireAmount(t, 600, jan.CurrentBalance)

	mar := e.createCycle(t, period(2025, time.March), 30)
	// Before the back-dated insert, March chains onto January.
	requireAmount(t, 600, mar.PreviousBalance)

	feb := e.createCycle(t, period(2025, time.February), 25)
	requireAmount(t, 600, feb.PreviousBalance)
	requireAmount(t, 850, feb.BillAmount)
	requireAmount(t, 1450, feb.CurrentBalance)

	marAfter := e.getCycle(t, mar.ID)
	requireAmount(t, 1450, marAfter.PreviousBalance)

	breaks, err := e.auditor.Audit(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, breaks)
}

func TestCreateCycle_ZeroConsumptionWarning(t *testing.T) {
	e := newTestEngine(t)
	e.createCycle(t, period(2025, time.January), 10)

	cycle, warnings, err := e.ledger.CreateCycle(context.Background(), billing.CreateCycleParams{
		TenantID:       testTenant,
		Period:         period(2025, time.February),
		CurrentReading: dec(10),
		RatePerUnit:    dec(50),
		StandingCharge: dec(100),
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, billing.WarnZeroConsumption, warnings[0].Code)

	// Standing charge still applies on zero usage.
	requireAmount(t, 0, cycle.UnitsUsed)
	requireAmount(t, 100, cycle.BillAmount)
}

// =============================================================================
// READING CORRECTIONS
// =============================================================================

func TestUpdateReadings_CascadesForward(t *testing.T) {
	// GIVEN: Three chained cycles with a payment in the middle
	// WHEN: January's reading is corrected upward
	// THEN: Every later balance is recomputed; paid amounts are untouched

	e := newTestEngine(t)

	jan := e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	e.pay(t, feb.ID, 500)
	mar := e.createCycle(t, period(2025, time.March), 30)

	// Correct January: 10 -> 12 adds 2 units = 100 to every balance after it.
	updated, _, err := e.ledger.UpdateReadings(context.Background(), jan.ID, dec(0), dec(12))
	require.NoError(t, err)
	requireAmount(t, 700, updated.BillAmount)
	requireAmount(t, 700, updated.CurrentBalance)

	febAfter := e.getCycle(t, feb.ID)
	requireAmount(t, 700, febAfter.PreviousBalance)
	requireAmount(t, 500, febAfter.PaidAmount)
	// Only balances cascade; February's own readings stay as recorded.
	requireAmount(t, 15, febAfter.UnitsUsed)
	requireAmount(t, 1050, febAfter.CurrentBalance) // 700 + 850 - 500

	marAfter := e.getCycle(t, mar.ID)
	requireAmount(t, 1050, marAfter.PreviousBalance)
	requireAmount(t, 1400, marAfter.CurrentBalance) // 1050 + 350

	breaks, err := e.auditor.Audit(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, breaks)
}

func TestUpdateReadings_Idempotent(t *testing.T) {
	e := newTestEngine(t)

	jan := e.createCycle(t, period(2025, time.January), 10)
	e.createCycle(t, period(2025, time.February), 25)

	first, _, err := e.ledger.UpdateReadings(context.Background(), jan.ID, dec(0), dec(12))
	require.NoError(t, err)
	second, _, err := e.ledger.UpdateReadings(context.Background(), jan.ID, dec(0), dec(12))
	require.NoError(t, err)

	assert.True(t, first.CurrentBalance.Equal(second.CurrentBalance))
	assert.True(t, first.BillAmount.Equal(second.BillAmount))
}

func TestUpdateReadings_InvalidPairLeavesChainUntouched(t *testing.T) {
	e := newTestEngine(t)

	jan := e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)

	_, _, err := e.ledger.UpdateReadings(context.Background(), jan.ID, dec(20), dec(15))
	assert.True(t, errors.Is(err, billing.ErrInvalidReading))

	requireAmount(t, 600, e.getCycle(t, jan.ID).CurrentBalance)
	requireAmount(t, 600, e.getCycle(t, feb.ID).PreviousBalance)
}

func TestUpdateReadings_UnknownCycle(t *testing.T) {
	e := newTestEngine(t)

	_, _, err := e.ledger.UpdateReadings(context.Background(), "missing", dec(0), dec(10))
	assert.True(t, errors.Is(err, billing.ErrCycleNotFound))
}

// =============================================================================
// DELETE POLICY
// =============================================================================

func TestDeleteCycle_LatestCycleDeletes(t *testing.T) {
	e := newTestEngine(t)

	jan := e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	e.pay(t, feb.ID, 300)

	require.NoError(t, e.ledger.DeleteCycle(context.Background(), feb.ID))

	_, err := e.ledger.GetCycle(context.Background(), feb.ID)
	assert.True(t, errors.Is(err, billing.ErrCycleNotFound))

	// February's payments went with it.
	payments, err := e.allocator.ListPaymentsForTenant(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, payments)

	// January is now the latest and deletable.
	require.NoError(t, e.ledger.DeleteCycle(context.Background(), jan.ID))
}

func TestDeleteCycle_EarlierCycleRejected(t *testing.T) {
	// GIVEN: January and February both billed
	// WHEN: Deleting January
	// THEN: Rejected with the earliest blocking cycle named

	e := newTestEngine(t)

	jan := e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	e.createCycle(t, period(2025, time.March), 30)

	err := e.ledger.DeleteCycle(context.Background(), jan.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrCycleInUse))

	var inUse *billing.CycleInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, feb.ID, inUse.Blocking)

	// Nothing was deleted.
	cycles, err := e.ledger.ListCyclesForTenant(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, cycles, 3)
}
