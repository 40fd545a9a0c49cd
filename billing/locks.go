package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// PER-TENANT SERIALIZATION
// =============================================================================

// TenantLocks serializes mutations per tenant. Concurrent requests on
// different tenants proceed independently; concurrent requests on the same
// tenant queue, protecting the carry-forward cascade.
//
// One instance is shared by the ledger, the allocator, and the auditor.
type TenantLocks struct {
	mu    sync.Mutex
	locks map[TenantID]*sync.Mutex
}

func NewTenantLocks() *TenantLocks {
	return &TenantLocks{locks: make(map[TenantID]*sync.Mutex)}
}

// Lock acquires the tenant's mutex and returns the unlock function.
//
//	defer locks.Lock(tenantID)()
func (t *TenantLocks) Lock(id TenantID) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// =============================================================================
// BOUNDED RETRY AROUND STORE TRANSACTIONS
// =============================================================================

const (
	txMaxAttempts    = 5
	txInitialBackoff = 10 * time.Millisecond
)

// runInTx executes fn inside a store transaction, retrying on store-level
// lock contention with doubling backoff. After exhaustion the contention is
// surfaced as ErrConcurrencyConflict; every other error passes through.
func runInTx(ctx context.Context, store TxStore, fn func(Store) error) error {
	backoff := txInitialBackoff

	var err error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		err = store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, ErrStoreBusy) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
}
