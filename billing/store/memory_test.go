package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumba/billing-engine/billing"
	"github.com/nyumba/billing-engine/billing/store"
)

func cycle(id billing.CycleID, p billing.Period) billing.BillingCycle {
	c := billing.BillingCycle{
		ID:              id,
		TenantID:        "tenant-1",
		Period:          p,
		PreviousReading: decimal.Zero,
		CurrentReading:  decimal.NewFromInt(10),
		RatePerUnit:     decimal.NewFromInt(50),
		StandingCharge:  decimal.NewFromInt(100),
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	c.Recompute()
	return c
}

func TestMemory_DuplicatePeriodRejected(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertCycle(ctx, cycle("c1", billing.NewPeriod(2025, time.January))))

	err := m.InsertCycle(ctx, cycle("c2", billing.NewPeriod(2025, time.January)))
	assert.True(t, errors.Is(err, billing.ErrDuplicateCycle))
}

func TestMemory_DeleteCycleRemovesItsPayments(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertCycle(ctx, cycle("c1", billing.NewPeriod(2025, time.January))))
	require.NoError(t, m.InsertPayment(ctx, billing.Payment{
		ID: "p1", TenantID: "tenant-1", CycleID: "c1",
		Amount: decimal.NewFromInt(100), CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, m.DeleteCycle(ctx, "c1"))

	p, err := m.GetPayment(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts and then fails
	// THEN: The snapshot is restored and nothing is visible

	m := store.NewMemory()
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := m.WithTx(ctx, func(s billing.Store) error {
		if err := s.InsertCycle(ctx, cycle("c1", billing.NewPeriod(2025, time.January))); err != nil {
			return err
		}
		return sentinel
	})
	assert.True(t, errors.Is(err, sentinel))

	c, err := m.GetCycle(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestMemory_ListCyclesNewestFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertCycle(ctx, cycle("c1", billing.NewPeriod(2024, time.December))))
	require.NoError(t, m.InsertCycle(ctx, cycle("c2", billing.NewPeriod(2025, time.February))))
	require.NoError(t, m.InsertCycle(ctx, cycle("c3", billing.NewPeriod(2025, time.January))))

	cycles, err := m.ListCycles(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	assert.Equal(t, billing.CycleID("c2"), cycles[0].ID)
	assert.Equal(t, billing.CycleID("c3"), cycles[1].ID)
	assert.Equal(t, billing.CycleID("c1"), cycles[2].ID)
}
