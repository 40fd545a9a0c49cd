package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OUTBOUND EVENTS - Fire-and-forget to the notification layer
// =============================================================================

// Events are delivered after the owning transaction commits. A failing or
// slow notifier must never roll back the ledger; implementations swallow
// their own errors (logging them is their business).

type CycleCreatedEvent struct {
	TenantID   TenantID
	CycleID    CycleID
	BillAmount decimal.Decimal
}

type PaymentRecordedEvent struct {
	TenantID         TenantID
	CycleID          CycleID
	PaymentID        PaymentID
	Amount           decimal.Decimal
	ResultingBalance decimal.Decimal
}

type Notifier interface {
	CycleCreated(ctx context.Context, e CycleCreatedEvent)
	PaymentRecorded(ctx context.Context, e PaymentRecordedEvent)
}

// NopNotifier is the default when no notification layer is wired.
type NopNotifier struct{}

func (NopNotifier) CycleCreated(context.Context, CycleCreatedEvent)       {}
func (NopNotifier) PaymentRecorded(context.Context, PaymentRecordedEvent) {}
