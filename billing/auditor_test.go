package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumba/billing-engine/billing"
)

// breakChain corrupts a stored cycle's previous_balance directly, bypassing
// the ledger, to simulate the drift the auditor exists to catch.
func breakChain(t *testing.T, e *testEngine, cycleID billing.CycleID, previousBalance float64) {
	t.Helper()

	cycle := e.getCycle(t, cycleID)
	cycle.PreviousBalance = dec(previousBalance)
	cycle.Recompute()
	require.NoError(t, e.store.UpdateCycle(context.Background(), *cycle))
}

func TestAudit_IntactChainReportsNothing(t *testing.T) {
	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)
	e.pay(t, jan.ID, 400)
	e.createCycle(t, period(2025, time.February), 25)
	e.createCycle(t, period(2025, time.March), 30)

	breaks, err := e.auditor.Audit(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, breaks)
}

func TestAudit_ReportsEachBreakOnce(t *testing.T) {
	// GIVEN: A three-cycle chain with February's opening balance corrupted
	// WHEN: Auditing
	// THEN: Exactly one discrepancy, naming February, expected vs actual

	e := newTestEngine(t)
	e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	mar := e.createCycle(t, period(2025, time.March), 30)

	breakChain(t, e, feb.ID, 999)
	// Re-link March onto February's corrupted balance so only the one break
	// exists in the stored chain.
	breakChain(t, e, mar.ID, e.getCycle(t, feb.ID).CurrentBalance.InexactFloat64())

	breaks, err := e.auditor.Audit(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, breaks, 1)
	assert.Equal(t, feb.ID, breaks[0].CycleID)
	requireAmount(t, 600, breaks[0].Expected)
	requireAmount(t, 999, breaks[0].Actual)
}

func TestAudit_IsIdempotentAndReadOnly(t *testing.T) {
	e := newTestEngine(t)
	e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	breakChain(t, e, feb.ID, 50)

	first, err := e.auditor.Audit(context.Background(), testTenant)
	require.NoError(t, err)
	second, err := e.auditor.Audit(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The broken balance is still broken; Audit never writes.
	requireAmount(t, 50, e.getCycle(t, feb.ID).PreviousBalance)
}

func TestRepair_FixesChainAndReportsWhatChanged(t *testing.T) {
	// GIVEN: A corrupted middle cycle
	// WHEN: Repairing
	// THEN: The chain is rebuilt from zero forward and the audit comes
	//       back clean

	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	mar := e.createCycle(t, period(2025, time.March), 30)
	e.pay(t, feb.ID, 500)

	breakChain(t, e, feb.ID, 999)

	fixed, err := e.auditor.Repair(context.Background(), testTenant)
	require.NoError(t, err)
	assert.NotEmpty(t, fixed)

	requireAmount(t, 600, e.getCycle(t, jan.ID).CurrentBalance)
	febAfter := e.getCycle(t, feb.ID)
	requireAmount(t, 600, febAfter.PreviousBalance)
	requireAmount(t, 950, febAfter.CurrentBalance) // 600 + 850 - 500
	requireAmount(t, 950, e.getCycle(t, mar.ID).PreviousBalance)

	breaks, err := e.auditor.Audit(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, breaks)
}

func TestRepair_IntactChainWritesNothing(t *testing.T) {
	e := newTestEngine(t)
	e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	before := e.getCycle(t, feb.ID).UpdatedAt

	fixed, err := e.auditor.Repair(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, fixed)
	assert.Equal(t, before, e.getCycle(t, feb.ID).UpdatedAt)
}
