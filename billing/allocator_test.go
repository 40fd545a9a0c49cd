package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumba/billing-engine/billing"
)

// =============================================================================
// PAYMENT RECORDING
// =============================================================================

func TestRecordPayment_PartialThenFull(t *testing.T) {
	// GIVEN: A 600 bill
	// WHEN: Paying 400 then 200
	// THEN: paid_amount is the sum over rows and the balance closes to zero

	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)

	e.pay(t, jan.ID, 400)
	mid := e.getCycle(t, jan.ID)
	requireAmount(t, 400, mid.PaidAmount)
	requireAmount(t, 200, mid.CurrentBalance)
	assert.Equal(t, billing.StatusOutstanding, mid.Status())

	e.pay(t, jan.ID, 200)
	after := e.getCycle(t, jan.ID)
	requireAmount(t, 600, after.PaidAmount)
	requireAmount(t, 0, after.CurrentBalance)
	assert.Equal(t, billing.StatusPaidInFull, after.Status())
}

func TestRecordPayment_NonPositiveAmountRejected(t *testing.T) {
	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)

	for _, amount := range []float64{0, -50} {
		_, err := e.allocator.RecordPayment(context.Background(), billing.RecordPaymentParams{
			TenantID: testTenant,
			CycleID:  jan.ID,
			Amount:   dec(amount),
		})
		assert.True(t, errors.Is(err, billing.ErrInvalidAmount))
	}
}

func TestRecordPayment_WrongTenantRejected(t *testing.T) {
	// A payment naming tenant B against tenant A's cycle must not land.
	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)

	require.NoError(t, e.store.UpsertTenant(context.Background(), billing.Tenant{
		ID: "tenant-2", Name: "Brian Otieno", Status: billing.TenantActive,
	}))

	_, err := e.allocator.RecordPayment(context.Background(), billing.RecordPaymentParams{
		TenantID: "tenant-2",
		CycleID:  jan.ID,
		Amount:   dec(100),
	})
	assert.True(t, errors.Is(err, billing.ErrCycleNotFound))
	requireAmount(t, 0, e.getCycle(t, jan.ID).PaidAmount)
}

func TestRecordPayment_DefaultsToCash(t *testing.T) {
	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)

	payment, err := e.allocator.RecordPayment(context.Background(), billing.RecordPaymentParams{
		TenantID:    testTenant,
		CycleID:     jan.ID,
		Amount:      dec(100),
		PaymentDate: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, billing.MethodCash, payment.Method)
}

func TestRecordPayment_ConcurrentPaymentsBothCount(t *testing.T) {
	// GIVEN: Two payments racing against the same cycle
	// THEN: paid_amount ends at A+B, never a lost update

	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)

	var wg sync.WaitGroup
	for _, amount := range []float64{250, 350} {
		wg.Add(1)
		go func(amount float64) {
			defer wg.Done()
			_, err := e.allocator.RecordPayment(context.Background(), billing.RecordPaymentParams{
				TenantID:    testTenant,
				CycleID:     jan.ID,
				Amount:      dec(amount),
				PaymentDate: time.Now(),
			})
			assert.NoError(t, err)
		}(amount)
	}
	wg.Wait()

	after := e.getCycle(t, jan.ID)
	requireAmount(t, 600, after.PaidAmount)
	requireAmount(t, 0, after.CurrentBalance)
}

func TestRecordPayment_DoesNotCascadeToLaterCycles(t *testing.T) {
	// GIVEN: January unpaid, so February opens at 600
	// WHEN: January is later paid in full
	// THEN: February's previous balance stays 600; the chain invariant holds

	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	requireAmount(t, 600, feb.PreviousBalance)

	e.pay(t, jan.ID, 600)

	febAfter := e.getCycle(t, feb.ID)
	requireAmount(t, 600, febAfter.PreviousBalance)
}

// =============================================================================
// PAYMENT CORRECTIONS
// =============================================================================

func TestUpdatePayment_AdjustsCycleTotals(t *testing.T) {
	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)
	payment := e.pay(t, jan.ID, 400)

	updated, err := e.allocator.UpdatePayment(context.Background(), payment.ID, billing.UpdatePaymentParams{
		Amount:      dec(600),
		PaymentDate: payment.PaymentDate,
		Method:      billing.MethodBank,
	})
	require.NoError(t, err)
	requireAmount(t, 600, updated.Amount)
	assert.Equal(t, billing.MethodBank, updated.Method)

	after := e.getCycle(t, jan.ID)
	requireAmount(t, 600, after.PaidAmount)
	requireAmount(t, 0, after.CurrentBalance)
}

func TestDeletePayment_RestoresBalance(t *testing.T) {
	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)
	payment := e.pay(t, jan.ID, 600)
	requireAmount(t, 0, e.getCycle(t, jan.ID).CurrentBalance)

	require.NoError(t, e.allocator.DeletePayment(context.Background(), payment.ID))

	after := e.getCycle(t, jan.ID)
	requireAmount(t, 0, after.PaidAmount)
	requireAmount(t, 600, after.CurrentBalance)
}

func TestDeletePayment_Unknown(t *testing.T) {
	e := newTestEngine(t)

	err := e.allocator.DeletePayment(context.Background(), "missing")
	assert.True(t, errors.Is(err, billing.ErrPaymentNotFound))
}

// =============================================================================
// AUTO-ALLOCATION
// =============================================================================

func TestAutoAllocate_OldestFirst(t *testing.T) {
	// GIVEN: Three outstanding cycles of 600, 850, 350
	// WHEN: Auto-allocating 1000
	// THEN: January zeroed, 400 to February, March untouched

	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)
	feb := e.createCycle(t, period(2025, time.February), 25)
	mar := e.createCycle(t, period(2025, time.March), 30)
	requireAmount(t, 850, feb.BillAmount)
	requireAmount(t, 350, mar.BillAmount)

	payments, err := e.allocator.RecordPaymentAutoAllocate(context.Background(), billing.AutoAllocateParams{
		TenantID:    testTenant,
		Amount:      dec(1000),
		PaymentDate: time.Now(),
		Method:      billing.MethodMpesa,
	})
	require.NoError(t, err)
	require.Len(t, payments, 2)

	assert.Equal(t, jan.ID, payments[0].CycleID)
	requireAmount(t, 600, payments[0].Amount)
	assert.Equal(t, feb.ID, payments[1].CycleID)
	requireAmount(t, 400, payments[1].Amount)

	requireAmount(t, 0, e.getCycle(t, jan.ID).CurrentBalance)
	requireAmount(t, 400, e.getCycle(t, feb.ID).PaidAmount)
	requireAmount(t, 0, e.getCycle(t, mar.ID).PaidAmount)
}

func TestAutoAllocate_RemainderBecomesCredit(t *testing.T) {
	// GIVEN: A single 600 cycle
	// WHEN: Auto-allocating 800
	// THEN: 600 clears it and the 200 remainder lands as credit on the
	//       most recent cycle

	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)

	payments, err := e.allocator.RecordPaymentAutoAllocate(context.Background(), billing.AutoAllocateParams{
		TenantID:    testTenant,
		Amount:      dec(800),
		PaymentDate: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, payments, 2)
	requireAmount(t, 600, payments[0].Amount)
	requireAmount(t, 200, payments[1].Amount)
	assert.Equal(t, jan.ID, payments[1].CycleID)

	after := e.getCycle(t, jan.ID)
	requireAmount(t, -200, after.CurrentBalance)
	assert.Equal(t, billing.StatusCredited, after.Status())
}

func TestAutoAllocate_NoCyclesRejected(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.allocator.RecordPaymentAutoAllocate(context.Background(), billing.AutoAllocateParams{
		TenantID:    testTenant,
		Amount:      dec(500),
		PaymentDate: time.Now(),
	})
	assert.True(t, errors.Is(err, billing.ErrCycleNotFound))
}

func TestAutoAllocate_SkipsSettledCycles(t *testing.T) {
	e := newTestEngine(t)
	jan := e.createCycle(t, period(2025, time.January), 10)
	e.pay(t, jan.ID, 600)
	feb := e.createCycle(t, period(2025, time.February), 25)

	payments, err := e.allocator.RecordPaymentAutoAllocate(context.Background(), billing.AutoAllocateParams{
		TenantID:    testTenant,
		Amount:      dec(850),
		PaymentDate: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, feb.ID, payments[0].CycleID)
	requireAmount(t, 0, e.getCycle(t, feb.ID).CurrentBalance)
}
