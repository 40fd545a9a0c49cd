// Package store provides an in-memory billing.Store implementation for
// tests and development. The production implementation lives in
// store/sqlite.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nyumba/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	tenants  map[billing.TenantID]billing.Tenant
	cycles   map[billing.CycleID]billing.BillingCycle
	payments map[billing.PaymentID]billing.Payment
}

func NewMemory() *Memory {
	return &Memory{
		tenants:  make(map[billing.TenantID]billing.Tenant),
		cycles:   make(map[billing.CycleID]billing.BillingCycle),
		payments: make(map[billing.PaymentID]billing.Payment),
	}
}

// =============================================================================
// TENANTS
// =============================================================================

func (m *Memory) UpsertTenant(_ context.Context, t billing.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

func (m *Memory) GetTenant(_ context.Context, id billing.TenantID) (*billing.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTenantLocked(id), nil
}

func (m *Memory) getTenantLocked(id billing.TenantID) *billing.Tenant {
	t, ok := m.tenants[id]
	if !ok {
		return nil
	}
	return &t
}

func (m *Memory) ListTenants(_ context.Context) ([]billing.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]billing.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Name < tenants[j].Name })
	return tenants, nil
}

// =============================================================================
// BILLING CYCLES
// =============================================================================

func (m *Memory) InsertCycle(_ context.Context, c billing.BillingCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCycleLocked(c)
}

func (m *Memory) insertCycleLocked(c billing.BillingCycle) error {
	for _, existing := range m.cycles {
		if existing.TenantID == c.TenantID && existing.Period.Equal(c.Period) {
			return &billing.DuplicateCycleError{
				TenantID: c.TenantID,
				Period:   c.Period,
				Existing: existing.ID,
			}
		}
	}
	m.cycles[c.ID] = c
	return nil
}

func (m *Memory) UpdateCycle(_ context.Context, c billing.BillingCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCycleLocked(c)
}

func (m *Memory) updateCycleLocked(c billing.BillingCycle) error {
	if _, ok := m.cycles[c.ID]; !ok {
		return billing.ErrCycleNotFound
	}
	m.cycles[c.ID] = c
	return nil
}

func (m *Memory) DeleteCycle(_ context.Context, id billing.CycleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCycleLocked(id)
}

func (m *Memory) deleteCycleLocked(id billing.CycleID) error {
	if _, ok := m.cycles[id]; !ok {
		return billing.ErrCycleNotFound
	}
	delete(m.cycles, id)
	for pid, p := range m.payments {
		if p.CycleID == id {
			delete(m.payments, pid)
		}
	}
	return nil
}

func (m *Memory) GetCycle(_ context.Context, id billing.CycleID) (*billing.BillingCycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCycleLocked(id), nil
}

func (m *Memory) getCycleLocked(id billing.CycleID) *billing.BillingCycle {
	c, ok := m.cycles[id]
	if !ok {
		return nil
	}
	return &c
}

func (m *Memory) GetCycleForPeriod(_ context.Context, tenantID billing.TenantID, p billing.Period) (*billing.BillingCycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCycleForPeriodLocked(tenantID, p), nil
}

func (m *Memory) getCycleForPeriodLocked(tenantID billing.TenantID, p billing.Period) *billing.BillingCycle {
	for _, c := range m.cycles {
		if c.TenantID == tenantID && c.Period.Equal(p) {
			c := c
			return &c
		}
	}
	return nil
}

func (m *Memory) ListCycles(_ context.Context, tenantID billing.TenantID) ([]billing.BillingCycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCyclesLocked(tenantID), nil
}

func (m *Memory) listCyclesLocked(tenantID billing.TenantID) []billing.BillingCycle {
	var cycles []billing.BillingCycle
	for _, c := range m.cycles {
		if c.TenantID == tenantID {
			cycles = append(cycles, c)
		}
	}
	// Most recent period first, matching the store contract.
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Period.After(cycles[j].Period)
	})
	return cycles
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) InsertPayment(_ context.Context, p billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPaymentLocked(p)
}

func (m *Memory) insertPaymentLocked(p billing.Payment) error {
	if _, ok := m.cycles[p.CycleID]; !ok {
		return billing.ErrCycleNotFound
	}
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) UpdatePayment(_ context.Context, p billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePaymentLocked(p)
}

func (m *Memory) updatePaymentLocked(p billing.Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return billing.ErrPaymentNotFound
	}
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id billing.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *Memory) deletePaymentLocked(id billing.PaymentID) error {
	if _, ok := m.payments[id]; !ok {
		return billing.ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id billing.PaymentID) (*billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPaymentLocked(id), nil
}

func (m *Memory) getPaymentLocked(id billing.PaymentID) *billing.Payment {
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	return &p
}

func (m *Memory) ListPaymentsForCycle(_ context.Context, cycleID billing.CycleID) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPaymentsLocked(func(p billing.Payment) bool { return p.CycleID == cycleID }), nil
}

func (m *Memory) ListPaymentsForTenant(_ context.Context, tenantID billing.TenantID) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPaymentsLocked(func(p billing.Payment) bool { return p.TenantID == tenantID }), nil
}

func (m *Memory) listPaymentsLocked(match func(billing.Payment) bool) []billing.Payment {
	var payments []billing.Payment
	for _, p := range m.payments {
		if match(p) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].PaymentDate.After(payments[j].PaymentDate)
		}
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments
}

func (m *Memory) SumPaymentsForCycle(_ context.Context, cycleID billing.CycleID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumPaymentsLocked(cycleID), nil
}

func (m *Memory) sumPaymentsLocked(cycleID billing.CycleID) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.CycleID == cycleID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

// =============================================================================
// TRANSACTIONS - Snapshot and roll back on error
// =============================================================================

// WithTx executes fn against a view that writes directly into the store
// while the store lock is held. On error the pre-transaction snapshot is
// restored, so partial cascades are never observable.
func (m *Memory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{m: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	tenants  map[billing.TenantID]billing.Tenant
	cycles   map[billing.CycleID]billing.BillingCycle
	payments map[billing.PaymentID]billing.Payment
}

func (m *Memory) snapshot() memorySnapshot {
	snap := memorySnapshot{
		tenants:  make(map[billing.TenantID]billing.Tenant, len(m.tenants)),
		cycles:   make(map[billing.CycleID]billing.BillingCycle, len(m.cycles)),
		payments: make(map[billing.PaymentID]billing.Payment, len(m.payments)),
	}
	for k, v := range m.tenants {
		snap.tenants[k] = v
	}
	for k, v := range m.cycles {
		snap.cycles[k] = v
	}
	for k, v := range m.payments {
		snap.payments[k] = v
	}
	return snap
}

func (m *Memory) restore(snap memorySnapshot) {
	m.tenants = snap.tenants
	m.cycles = snap.cycles
	m.payments = snap.payments
}

// txView forwards to the locked methods of the parent; the parent's mutex
// is already held for the duration of WithTx.
type txView struct {
	m *Memory
}

func (v *txView) UpsertTenant(_ context.Context, t billing.Tenant) error {
	v.m.tenants[t.ID] = t
	return nil
}

func (v *txView) GetTenant(_ context.Context, id billing.TenantID) (*billing.Tenant, error) {
	return v.m.getTenantLocked(id), nil
}

func (v *txView) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	tenants := make([]billing.Tenant, 0, len(v.m.tenants))
	for _, t := range v.m.tenants {
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Name < tenants[j].Name })
	return tenants, nil
}

func (v *txView) InsertCycle(_ context.Context, c billing.BillingCycle) error {
	return v.m.insertCycleLocked(c)
}

func (v *txView) UpdateCycle(_ context.Context, c billing.BillingCycle) error {
	return v.m.updateCycleLocked(c)
}

func (v *txView) DeleteCycle(_ context.Context, id billing.CycleID) error {
	return v.m.deleteCycleLocked(id)
}

func (v *txView) GetCycle(_ context.Context, id billing.CycleID) (*billing.BillingCycle, error) {
	return v.m.getCycleLocked(id), nil
}

func (v *txView) GetCycleForPeriod(_ context.Context, tenantID billing.TenantID, p billing.Period) (*billing.BillingCycle, error) {
	return v.m.getCycleForPeriodLocked(tenantID, p), nil
}

func (v *txView) ListCycles(_ context.Context, tenantID billing.TenantID) ([]billing.BillingCycle, error) {
	return v.m.listCyclesLocked(tenantID), nil
}

func (v *txView) InsertPayment(_ context.Context, p billing.Payment) error {
	return v.m.insertPaymentLocked(p)
}

func (v *txView) UpdatePayment(_ context.Context, p billing.Payment) error {
	return v.m.updatePaymentLocked(p)
}

func (v *txView) DeletePayment(_ context.Context, id billing.PaymentID) error {
	return v.m.deletePaymentLocked(id)
}

func (v *txView) GetPayment(_ context.Context, id billing.PaymentID) (*billing.Payment, error) {
	return v.m.getPaymentLocked(id), nil
}

func (v *txView) ListPaymentsForCycle(_ context.Context, cycleID billing.CycleID) ([]billing.Payment, error) {
	return v.m.listPaymentsLocked(func(p billing.Payment) bool { return p.CycleID == cycleID }), nil
}

func (v *txView) ListPaymentsForTenant(_ context.Context, tenantID billing.TenantID) ([]billing.Payment, error) {
	return v.m.listPaymentsLocked(func(p billing.Payment) bool { return p.TenantID == tenantID }), nil
}

func (v *txView) SumPaymentsForCycle(_ context.Context, cycleID billing.CycleID) (decimal.Decimal, error) {
	return v.m.sumPaymentsLocked(cycleID), nil
}
