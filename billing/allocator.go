/*
allocator.go - Payment recording and allocation

PURPOSE:
  Applies a payment amount to one selected billing cycle (or, via the
  explicit auto-allocation entry point, to the tenant's outstanding cycles
  oldest-first), keeping paid_amount and current_balance consistent.

RECONCILIATION RULE:
  paid_amount is never incremented in place. After every payment mutation
  the target cycle's paid_amount is recomputed as the SUM over its payment
  rows, inside the same transaction. Two concurrent payments against the
  same cycle therefore end with paid_amount == A+B, never a lost update.

NO FORWARD CASCADE:
  Payments touch only their target cycle. A later cycle's previous_balance
  was fixed from the chain at creation time; the shortfall of a partially
  paid old cycle already lives there. Only reading corrections (and
  explicit Repair) rewrite the chain.

OVERPAYMENT:
  Paying more than the current balance drives it negative - a credit, not
  an error. Credit carries forward into the next cycle created.

SEE ALSO:
  - ledger.go: Chain maintenance the allocator deliberately does not do
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
// PAYMENT ALLOCATOR
// =============================================================================

type PaymentAllocator struct {
	store    TxStore
	notifier Notifier
	locks    *TenantLocks
}

func NewPaymentAllocator(store TxStore, notifier Notifier, locks *TenantLocks) *PaymentAllocator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if locks == nil {
		locks = NewTenantLocks()
	}
	return &PaymentAllocator{store: store, notifier: notifier, locks: locks}
}

type RecordPaymentParams struct {
	TenantID    TenantID
	CycleID     CycleID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Notes       string
}

// RecordPayment inserts a payment against an operator-chosen cycle and
// reconciles that cycle's totals. Fails with CycleNotFound when the cycle
// does not exist or does not belong to the named tenant.
func (a *PaymentAllocator) RecordPayment(ctx context.Context, p RecordPaymentParams) (*Payment, error) {
	if !p.Amount.IsPositive() {
		return nil, &InvalidAmountError{Amount: p.Amount}
	}
	if p.Method == "" {
		p.Method = MethodCash
	}

	defer a.locks.Lock(p.TenantID)()

	var (
		payment Payment
		event   PaymentRecordedEvent
	)
	err := runInTx(ctx, a.store, func(s Store) error {
		cycle, err := s.GetCycle(ctx, p.CycleID)
		if err != nil {
			return err
		}
		if cycle == nil || cycle.TenantID != p.TenantID {
			return ErrCycleNotFound
		}

		payment = Payment{
			ID:          PaymentID(uuid.NewString()),
			TenantID:    p.TenantID,
			CycleID:     p.CycleID,
			Amount:      p.Amount,
			PaymentDate: p.PaymentDate,
			Method:      p.Method,
			Notes:       p.Notes,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.InsertPayment(ctx, payment); err != nil {
			return err
		}

		reconciled, err := reconcileCycle(ctx, s, *cycle)
		if err != nil {
			return err
		}
		event = PaymentRecordedEvent{
			TenantID:         p.TenantID,
			CycleID:          p.CycleID,
			PaymentID:        payment.ID,
			Amount:           p.Amount,
			ResultingBalance: reconciled.CurrentBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.notifier.PaymentRecorded(ctx, event)
	return &payment, nil
}

type UpdatePaymentParams struct {
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Notes       string
}

// UpdatePayment corrects an existing payment's amount, date, method, or
// notes. The target cycle and tenant cannot be changed; re-targeting is a
// delete plus a new payment.
func (a *PaymentAllocator) UpdatePayment(ctx context.Context, id PaymentID, p UpdatePaymentParams) (*Payment, error) {
	if !p.Amount.IsPositive() {
		return nil, &InvalidAmountError{Amount: p.Amount}
	}

	tenantID, err := a.tenantOf(ctx, id)
	if err != nil {
		return nil, err
	}
	defer a.locks.Lock(tenantID)()

	var updated Payment
	err = runInTx(ctx, a.store, func(s Store) error {
		payment, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}

		payment.Amount = p.Amount
		payment.PaymentDate = p.PaymentDate
		if p.Method != "" {
			payment.Method = p.Method
		}
		payment.Notes = p.Notes
		if err := s.UpdatePayment(ctx, *payment); err != nil {
			return err
		}
		updated = *payment

		cycle, err := s.GetCycle(ctx, payment.CycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return ErrCycleNotFound
		}
		_, err = reconcileCycle(ctx, s, *cycle)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePayment removes a payment and reverses its contribution to the
// target cycle's paid_amount and current_balance.
func (a *PaymentAllocator) DeletePayment(ctx context.Context, id PaymentID) error {
	tenantID, err := a.tenantOf(ctx, id)
	if err != nil {
		return err
	}
	defer a.locks.Lock(tenantID)()

	return runInTx(ctx, a.store, func(s Store) error {
		payment, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if err := s.DeletePayment(ctx, id); err != nil {
			return err
		}

		cycle, err := s.GetCycle(ctx, payment.CycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			// Cycle deleted out from under the payment would be a chain
			// defect elsewhere; nothing left to reconcile.
			return nil
		}
		_, err = reconcileCycle(ctx, s, *cycle)
		return err
	})
}

// =============================================================================
// AUTO-ALLOCATION - Explicit alternate entry point, oldest-first
// =============================================================================

type AutoAllocateParams struct {
	TenantID    TenantID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Notes       string
}

// RecordPaymentAutoAllocate distributes an amount across the tenant's
// outstanding cycles oldest-first, one payment row per cycle touched,
// stopping when the amount is exhausted. Any remainder after all
// outstanding cycles are zeroed is recorded as a credit against the most
// recent cycle. Deterministic: the same inputs always produce the same
// payment rows.
func (a *PaymentAllocator) RecordPaymentAutoAllocate(ctx context.Context, p AutoAllocateParams) ([]Payment, error) {
	if !p.Amount.IsPositive() {
		return nil, &InvalidAmountError{Amount: p.Amount}
	}
	if p.Method == "" {
		p.Method = MethodCash
	}

	defer a.locks.Lock(p.TenantID)()

	var (
		payments []Payment
		events   []PaymentRecordedEvent
	)
	err := runInTx(ctx, a.store, func(s Store) error {
		payments = payments[:0]
		events = events[:0]

		cycles, err := s.ListCycles(ctx, p.TenantID)
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			return ErrCycleNotFound
		}
		sort.Slice(cycles, func(i, j int) bool {
			return cycles[i].Period.Before(cycles[j].Period)
		})

		remaining := p.Amount
		for i := range cycles {
			if !remaining.IsPositive() {
				break
			}
			cycle := cycles[i]
			if !cycle.CurrentBalance.IsPositive() {
				continue
			}

			alloc := decimal.Min(remaining, cycle.CurrentBalance)
			reconciled, payment, err := a.allocate(ctx, s, cycle, alloc, p)
			if err != nil {
				return err
			}
			payments = append(payments, payment)
			events = append(events, PaymentRecordedEvent{
				TenantID:         p.TenantID,
				CycleID:          cycle.ID,
				PaymentID:        payment.ID,
				Amount:           alloc,
				ResultingBalance: reconciled.CurrentBalance,
			})
			remaining = remaining.Sub(alloc)
		}

		// Remainder becomes credit on the most recent cycle.
		if remaining.IsPositive() {
			latest := cycles[len(cycles)-1]
			reconciled, payment, err := a.allocate(ctx, s, latest, remaining, p)
			if err != nil {
				return err
			}
			payments = append(payments, payment)
			events = append(events, PaymentRecordedEvent{
				TenantID:         p.TenantID,
				CycleID:          latest.ID,
				PaymentID:        payment.ID,
				Amount:           remaining,
				ResultingBalance: reconciled.CurrentBalance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range events {
		a.notifier.PaymentRecorded(ctx, e)
	}
	return payments, nil
}

// allocate inserts one payment row against a cycle and reconciles it.
func (a *PaymentAllocator) allocate(ctx context.Context, s Store, cycle BillingCycle, amount decimal.Decimal, p AutoAllocateParams) (*BillingCycle, Payment, error) {
	payment := Payment{
		ID:          PaymentID(uuid.NewString()),
		TenantID:    p.TenantID,
		CycleID:     cycle.ID,
		Amount:      amount,
		PaymentDate: p.PaymentDate,
		Method:      p.Method,
		Notes:       p.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.InsertPayment(ctx, payment); err != nil {
		return nil, Payment{}, err
	}
	reconciled, err := reconcileCycle(ctx, s, cycle)
	if err != nil {
		return nil, Payment{}, err
	}
	return reconciled, payment, nil
}

// =============================================================================
// READS
// =============================================================================

func (a *PaymentAllocator) GetPayment(ctx context.Context, id PaymentID) (*Payment, error) {
	payment, err := a.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (a *PaymentAllocator) ListPaymentsForTenant(ctx context.Context, tenantID TenantID) ([]Payment, error) {
	return a.store.ListPaymentsForTenant(ctx, tenantID)
}

func (a *PaymentAllocator) ListPaymentsForCycle(ctx context.Context, cycleID CycleID) ([]Payment, error) {
	return a.store.ListPaymentsForCycle(ctx, cycleID)
}

func (a *PaymentAllocator) tenantOf(ctx context.Context, id PaymentID) (TenantID, error) {
	payment, err := a.store.GetPayment(ctx, id)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", ErrPaymentNotFound
	}
	return payment.TenantID, nil
}

// =============================================================================
// RECONCILIATION - paid_amount is always the sum over payment rows
// =============================================================================

func reconcileCycle(ctx context.Context, s Store, cycle BillingCycle) (*BillingCycle, error) {
	paid, err := s.SumPaymentsForCycle(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	cycle.PaidAmount = paid
	cycle.Recompute()
	cycle.UpdatedAt = time.Now().UTC()
	if err := s.UpdateCycle(ctx, cycle); err != nil {
		return nil, err
	}
	return &cycle, nil
}
