/*
auditor.go - Carry-forward chain verification and repair

PURPOSE:
  The auditor is a read-only consistency checker: given a tenant's full
  cycle history it verifies previous_balance(n) == current_balance(n-1)
  and reports each break. It never mutates state.

  Repair is the separate, explicitly invoked operation: it re-runs the
  ledger's cascade over the whole chain, fixing every break in one
  transaction, and reports what it fixed.

IDEMPOTENCE:
  Auditing twice with no intervening mutation yields identical results.
  Repairing an intact chain writes nothing.

SEE ALSO:
  - ledger.go: recomputeChain, the cascade Repair reuses
*/
package billing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Discrepancy is one break in a tenant's carry-forward chain.
type Discrepancy struct {
	CycleID  CycleID
	Period   Period
	Expected decimal.Decimal // preceding cycle's current_balance (0 for the first)
	Actual   decimal.Decimal // this cycle's recorded previous_balance
}

// =============================================================================
// RECONCILIATION AUDITOR
// =============================================================================

type Auditor struct {
	store TxStore
	locks *TenantLocks
}

func NewAuditor(store TxStore, locks *TenantLocks) *Auditor {
	if locks == nil {
		locks = NewTenantLocks()
	}
	return &Auditor{store: store, locks: locks}
}

// Audit walks the tenant's cycles in chronological order and reports every
// carry-forward violation. Side-effect-free.
func (a *Auditor) Audit(ctx context.Context, tenantID TenantID) ([]Discrepancy, error) {
	cycles, err := a.store.ListCycles(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Period.Before(cycles[j].Period)
	})

	var breaks []Discrepancy
	expected := decimal.Zero
	for _, c := range cycles {
		if !c.PreviousBalance.Equal(expected) {
			breaks = append(breaks, Discrepancy{
				CycleID:  c.ID,
				Period:   c.Period,
				Expected: expected,
				Actual:   c.PreviousBalance,
			})
		}
		// Follow the recorded chain as written: after a break, later
		// cycles are judged against the stored (broken) balances so each
		// independent break is reported once.
		expected = c.CurrentBalance
	}
	return breaks, nil
}

// Repair re-runs the balance cascade over the tenant's whole chain inside
// one transaction and returns the discrepancies it corrected. Repairing an
// intact chain returns nothing and writes nothing.
func (a *Auditor) Repair(ctx context.Context, tenantID TenantID) ([]Discrepancy, error) {
	defer a.locks.Lock(tenantID)()

	var fixed []Discrepancy
	err := runInTx(ctx, a.store, func(s Store) error {
		var err error
		fixed, err = recomputeChain(ctx, s, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fixed, nil
}
