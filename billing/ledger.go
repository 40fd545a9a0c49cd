/*
ledger.go - Billing cycle ledger with carry-forward chain maintenance

PURPOSE:
  The CycleLedger owns the BillingCycle entity: creation from a new meter
  reading, reading corrections, and deletion. It is the sole writer of the
  derived fields and the keeper of the carry-forward invariant:

    previous_balance(cycle_n) == current_balance(cycle_{n-1})

CASCADE:
  A reading correction changes bill_amount, which changes current_balance,
  which changes every later cycle's previous_balance transitively. The
  cascade loads the tenant's full chain, recomputes forward in
  chronological order, and writes back inside one store transaction.
  It is idempotent; a failed cascade leaves the prior state untouched.

DELETE POLICY:
  Deleting a cycle that later cycles chain onto is rejected with
  CycleInUse naming the blocking cycle. Silently relinking would rewrite
  financial history; the operator deletes newest-first instead.

CONCURRENCY:
  Mutations take the tenant's lock (TenantLocks) and run inside
  Store.WithTx with bounded retry on contention.

SEE ALSO:
  - validator.go: Reading plausibility checks run on every write
  - auditor.go: Verifies the chain; Repair reuses the cascade
*/
package billing

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CYCLE LEDGER
// =============================================================================

type CycleLedger struct {
	store     TxStore
	validator ReadingValidator
	notifier  Notifier
	locks     *TenantLocks
}

func NewCycleLedger(store TxStore, validator ReadingValidator, notifier Notifier, locks *TenantLocks) *CycleLedger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if locks == nil {
		locks = NewTenantLocks()
	}
	return &CycleLedger{store: store, validator: validator, notifier: notifier, locks: locks}
}

// CreateCycleParams carries the operator-supplied inputs for a new cycle.
// Derived fields are never accepted from callers.
type CreateCycleParams struct {
	TenantID       TenantID
	Period         Period
	CurrentReading decimal.Decimal
	RatePerUnit    decimal.Decimal
	StandingCharge decimal.Decimal
	DueDate        time.Time
}

// CreateCycle records a meter reading for a new period.
//
// The previous reading and opening balance are taken from the tenant's
// most recent cycle chronologically before the new period, defaulting to
// zero when none exists. Fails with DuplicateCycle if the period is
// already billed, and with InvalidReading if the pair is implausible.
func (l *CycleLedger) CreateCycle(ctx context.Context, p CreateCycleParams) (*BillingCycle, []Warning, error) {
	if !p.Period.Valid() {
		return nil, nil, ErrInvalidPeriod
	}
	if p.RatePerUnit.IsNegative() || p.StandingCharge.IsNegative() {
		return nil, nil, ErrInvalidCharge
	}

	defer l.locks.Lock(p.TenantID)()

	var (
		created  BillingCycle
		warnings []Warning
	)
	err := runInTx(ctx, l.store, func(s Store) error {
		tenant, err := s.GetTenant(ctx, p.TenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return ErrTenantNotFound
		}

		if existing, err := s.GetCycleForPeriod(ctx, p.TenantID, p.Period); err != nil {
			return err
		} else if existing != nil {
			return &DuplicateCycleError{TenantID: p.TenantID, Period: p.Period, Existing: existing.ID}
		}

		preceding, hasLater, err := neighbors(ctx, s, p.TenantID, p.Period)
		if err != nil {
			return err
		}

		previousReading := decimal.Zero
		previousBalance := decimal.Zero
		if preceding != nil {
			previousReading = preceding.CurrentReading
			previousBalance = preceding.CurrentBalance
		}

		warnings, err = l.validator.Validate(previousReading, p.CurrentReading)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		created = BillingCycle{
			ID:              CycleID(uuid.NewString()),
			TenantID:        p.TenantID,
			Period:          p.Period,
			PreviousReading: previousReading,
			CurrentReading:  p.CurrentReading,
			RatePerUnit:     p.RatePerUnit,
			StandingCharge:  p.StandingCharge,
			PreviousBalance: previousBalance,
			PaidAmount:      decimal.Zero,
			BillDate:        now,
			DueDate:         p.DueDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		created.Recompute()

		if err := s.InsertCycle(ctx, created); err != nil {
			return err
		}

		// A back-dated insert lands between existing cycles; re-link the
		// balances of everything after it.
		if hasLater {
			if _, err := recomputeChain(ctx, s, p.TenantID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	l.notifier.CycleCreated(ctx, CycleCreatedEvent{
		TenantID:   created.TenantID,
		CycleID:    created.ID,
		BillAmount: created.BillAmount,
	})
	return &created, warnings, nil
}

// UpdateReadings corrects a cycle's reading pair and cascades the balance
// recomputation to every later cycle of the same tenant. The cascade either
// completes atomically or leaves the chain in its pre-update state.
func (l *CycleLedger) UpdateReadings(ctx context.Context, cycleID CycleID, previous, current decimal.Decimal) (*BillingCycle, []Warning, error) {
	tenantID, err := l.tenantOf(ctx, cycleID)
	if err != nil {
		return nil, nil, err
	}
	defer l.locks.Lock(tenantID)()

	var (
		updated  BillingCycle
		warnings []Warning
	)
	err = runInTx(ctx, l.store, func(s Store) error {
		cycle, err := s.GetCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return ErrCycleNotFound
		}

		warnings, err = l.validator.Validate(previous, current)
		if err != nil {
			return err
		}

		cycle.PreviousReading = previous
		cycle.CurrentReading = current
		cycle.Recompute()
		cycle.UpdatedAt = time.Now().UTC()
		if err := s.UpdateCycle(ctx, *cycle); err != nil {
			return err
		}

		if _, err := recomputeChain(ctx, s, cycle.TenantID); err != nil {
			return err
		}

		// Re-read: the cascade may have rewritten this cycle's own
		// previous_balance when an earlier cycle was also stale.
		fresh, err := s.GetCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		updated = *fresh
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &updated, warnings, nil
}

// DeleteCycle removes a cycle and its payments. If a later cycle exists for
// the tenant, the delete is rejected with CycleInUse naming the earliest
// blocking cycle.
func (l *CycleLedger) DeleteCycle(ctx context.Context, cycleID CycleID) error {
	tenantID, err := l.tenantOf(ctx, cycleID)
	if err != nil {
		return err
	}
	defer l.locks.Lock(tenantID)()

	return runInTx(ctx, l.store, func(s Store) error {
		cycle, err := s.GetCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return ErrCycleNotFound
		}

		cycles, err := s.ListCycles(ctx, cycle.TenantID)
		if err != nil {
			return err
		}
		var blocking *BillingCycle
		for i := range cycles {
			c := cycles[i]
			if c.Period.After(cycle.Period) && (blocking == nil || c.Period.Before(blocking.Period)) {
				blocking = &cycles[i]
			}
		}
		if blocking != nil {
			return &CycleInUseError{CycleID: cycleID, Blocking: blocking.ID, Period: blocking.Period}
		}

		return s.DeleteCycle(ctx, cycleID)
	})
}

// GetCycle returns one cycle with all derived fields populated.
func (l *CycleLedger) GetCycle(ctx context.Context, cycleID CycleID) (*BillingCycle, error) {
	cycle, err := l.store.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, ErrCycleNotFound
	}
	return cycle, nil
}

// ListCyclesForTenant returns the tenant's cycles, most recent period first.
func (l *CycleLedger) ListCyclesForTenant(ctx context.Context, tenantID TenantID) ([]BillingCycle, error) {
	return l.store.ListCycles(ctx, tenantID)
}

// tenantOf resolves a cycle's tenant before taking the tenant lock.
func (l *CycleLedger) tenantOf(ctx context.Context, cycleID CycleID) (TenantID, error) {
	cycle, err := l.store.GetCycle(ctx, cycleID)
	if err != nil {
		return "", err
	}
	if cycle == nil {
		return "", ErrCycleNotFound
	}
	return cycle.TenantID, nil
}

// =============================================================================
// CHAIN WALK HELPERS
// =============================================================================

// neighbors returns the chronologically preceding cycle for the period (nil
// if none) and whether any later cycle exists.
func neighbors(ctx context.Context, s Store, tenantID TenantID, p Period) (*BillingCycle, bool, error) {
	cycles, err := s.ListCycles(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}

	var preceding *BillingCycle
	hasLater := false
	for i := range cycles {
		c := &cycles[i]
		switch {
		case c.Period.Before(p):
			if preceding == nil || c.Period.After(preceding.Period) {
				preceding = c
			}
		case c.Period.After(p):
			hasLater = true
		}
	}
	return preceding, hasLater, nil
}

// recomputeChain walks the tenant's cycles in chronological order and
// re-derives every balance from the carry-forward rule, writing back only
// rows that change. Returns the discrepancies it corrected.
//
// Idempotent: a second run with no intervening mutation writes nothing.
func recomputeChain(ctx context.Context, s Store, tenantID TenantID) ([]Discrepancy, error) {
	cycles, err := s.ListCycles(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Period.Before(cycles[j].Period)
	})

	var fixed []Discrepancy
	expected := decimal.Zero
	for i := range cycles {
		c := &cycles[i]

		if !c.PreviousBalance.Equal(expected) {
			fixed = append(fixed, Discrepancy{
				CycleID:  c.ID,
				Period:   c.Period,
				Expected: expected,
				Actual:   c.PreviousBalance,
			})
		}

		before := *c
		c.PreviousBalance = expected
		c.Recompute()
		if !c.PreviousBalance.Equal(before.PreviousBalance) ||
			!c.CurrentBalance.Equal(before.CurrentBalance) ||
			!c.BillAmount.Equal(before.BillAmount) ||
			!c.UnitsUsed.Equal(before.UnitsUsed) {
			c.UpdatedAt = time.Now().UTC()
			if err := s.UpdateCycle(ctx, *c); err != nil {
				return nil, err
			}
		}
		expected = c.CurrentBalance
	}
	return fixed, nil
}
