/*
store.go - Persistence interface for cycles, payments, and tenant references

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage.

MUTABILITY CONTRACT:
  Unlike an append-only event ledger, billing cycles are mutable by design:
  reading corrections rewrite derived fields and cascade down the chain.
  The engine is the only writer of derived fields; Store implementations
  persist whatever the engine hands them.

ATOMICITY:
  All multi-row mutations (cascades, payment reconciliation) run inside
  WithTx. Either every row lands or none do; no reader ever observes a
  partially-updated chain.

ORDERING:
  ListCycles returns cycles in (year, month) DESCENDING order - the
  operator-facing "most recent first" view. Chain walks re-sort ascending.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite with real constraints
  - billing/store: In-memory for tests and dev

SEE ALSO:
  - ledger.go, allocator.go, auditor.go: The only callers
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store handles persistence of all engine entities.
//
// Get* methods return (nil, nil) when the row does not exist; services
// translate that into the typed not-found errors.
//
// Implementations must enforce uniqueness of (tenant, year, month) for
// cycles and return ErrDuplicateCycle on violation, and must return
// ErrStoreBusy (wrapped) on lock contention so the engine can retry.
type Store interface {
	// Tenant references (directory-owned, engine reads only)
	UpsertTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id TenantID) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)

	// Billing cycles
	InsertCycle(ctx context.Context, c BillingCycle) error
	UpdateCycle(ctx context.Context, c BillingCycle) error
	// DeleteCycle removes the cycle and its payment rows.
	DeleteCycle(ctx context.Context, id CycleID) error
	GetCycle(ctx context.Context, id CycleID) (*BillingCycle, error)
	GetCycleForPeriod(ctx context.Context, tenantID TenantID, p Period) (*BillingCycle, error)
	// ListCycles returns the tenant's cycles ordered by (year, month) descending.
	ListCycles(ctx context.Context, tenantID TenantID) ([]BillingCycle, error)

	// Payments
	InsertPayment(ctx context.Context, p Payment) error
	UpdatePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id PaymentID) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	// ListPaymentsFor* return payments ordered by payment date descending.
	ListPaymentsForCycle(ctx context.Context, cycleID CycleID) ([]Payment, error)
	ListPaymentsForTenant(ctx context.Context, tenantID TenantID) ([]Payment, error)
	// SumPaymentsForCycle is the authoritative source for PaidAmount.
	SumPaymentsForCycle(ctx context.Context, cycleID CycleID) (decimal.Decimal, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
//
// WithTx executes fn within a transaction. If fn returns an error, the
// transaction is rolled back; otherwise it is committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
