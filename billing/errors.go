/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the API layer maps these
  onto HTTP statuses via the classification helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - Caller mistakes, reported immediately, no retry
  2. Not-found errors  - Missing or mismatched references
  3. Policy errors     - Rejections that carry enough context to proceed
                         differently (CycleInUse names the blocking cycle)
  4. Contention errors - Retried internally, surfaced after exhaustion

SEE ALSO:
  - validator.go: Produces InvalidReadingError
  - ledger.go: Produces DuplicateCycleError, CycleInUseError
  - allocator.go: Produces InvalidAmountError
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidReading is returned when a reading pair is physically
	// implausible (negative, or current below previous). Never clamped.
	ErrInvalidReading = errors.New("invalid meter reading")

	// ErrDuplicateCycle is returned when a cycle already exists for
	// (tenant, month, year).
	ErrDuplicateCycle = errors.New("billing cycle already exists for period")

	// ErrCycleNotFound is returned when a cycle id does not exist, or does
	// not belong to the tenant named by the caller.
	ErrCycleNotFound = errors.New("billing cycle not found")

	// ErrPaymentNotFound is returned when a payment id does not exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrTenantNotFound is returned when the tenant reference is missing.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrCycleInUse is returned when deleting a cycle that later cycles
	// chain onto. Deletion would silently rewrite financial history.
	ErrCycleInUse = errors.New("billing cycle has later cycles")

	// ErrInvalidAmount is returned for non-positive payment amounts.
	ErrInvalidAmount = errors.New("payment amount must be positive")

	// ErrInvalidPeriod is returned for malformed billing periods.
	ErrInvalidPeriod = errors.New("invalid billing period")

	// ErrInvalidCharge is returned for negative rates or standing charges.
	ErrInvalidCharge = errors.New("rate and standing charge must be non-negative")

	// ErrConcurrencyConflict is surfaced after internal retries on
	// same-tenant contention are exhausted.
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")

	// ErrStoreBusy is returned by Store implementations when the underlying
	// database reports lock contention. The engine retries these; callers
	// only ever see ErrConcurrencyConflict.
	ErrStoreBusy = errors.New("store busy")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidReadingError reports the rejected reading pair.
type InvalidReadingError struct {
	Previous decimal.Decimal
	Current  decimal.Decimal
}

func (e *InvalidReadingError) Error() string {
	return fmt.Sprintf("invalid meter reading: previous %s, current %s",
		e.Previous, e.Current)
}

func (e *InvalidReadingError) Unwrap() error { return ErrInvalidReading }

// DuplicateCycleError names the period that is already billed.
type DuplicateCycleError struct {
	TenantID TenantID
	Period   Period
	Existing CycleID
}

func (e *DuplicateCycleError) Error() string {
	return fmt.Sprintf("billing cycle already exists for tenant %s period %s (cycle: %s)",
		e.TenantID, e.Period, e.Existing)
}

func (e *DuplicateCycleError) Unwrap() error { return ErrDuplicateCycle }

// CycleInUseError names the earliest later cycle blocking a delete, so the
// caller can choose to delete forward-to-back.
type CycleInUseError struct {
	CycleID  CycleID
	Blocking CycleID
	Period   Period // period of the blocking cycle
}

func (e *CycleInUseError) Error() string {
	return fmt.Sprintf("cycle %s cannot be deleted: later cycle %s (%s) chains onto it",
		e.CycleID, e.Blocking, e.Period)
}

func (e *CycleInUseError) Unwrap() error { return ErrCycleInUse }

// InvalidAmountError reports the rejected payment amount.
type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("payment amount must be positive, got %s", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// or a policy rejection. These are never retried.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidReading) ||
		errors.Is(err, ErrDuplicateCycle) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidCharge) ||
		errors.Is(err, ErrCycleInUse)
}

// IsNotFound returns true if the error indicates a missing reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCycleNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrTenantNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreBusy)
}
