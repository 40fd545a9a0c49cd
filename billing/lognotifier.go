package billing

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier emits billing events to the structured log. It is the default
// production notifier; swap in a real dispatcher (SMS, email) behind the
// same interface when one exists.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) CycleCreated(ctx context.Context, e CycleCreatedEvent) {
	n.logger.Info("event: cycle created",
		zap.String("tenant_id", string(e.TenantID)),
		zap.String("cycle_id", string(e.CycleID)),
		zap.String("bill_amount", e.BillAmount.String()),
	)
}

func (n *LogNotifier) PaymentRecorded(ctx context.Context, e PaymentRecordedEvent) {
	n.logger.Info("event: payment recorded",
		zap.String("tenant_id", string(e.TenantID)),
		zap.String("cycle_id", string(e.CycleID)),
		zap.String("payment_id", string(e.PaymentID)),
		zap.String("amount", e.Amount.String()),
		zap.String("resulting_balance", e.ResultingBalance.String()),
	)
}
