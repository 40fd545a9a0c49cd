/*
Package billing provides the billing cycle and payment reconciliation engine.

PURPOSE:
  This package contains the domain types and algorithms for periodic utility
  billing: recording meter readings, deriving charges, carrying balances
  forward month to month, and reconciling payments against outstanding
  cycles.

KEY CONCEPTS IN THIS FILE (types.go):
  - BillingCycle: One tenant's metered-consumption statement for a period
  - Payment: Operator-recorded receipt of funds against one cycle
  - Tenant: Read-only reference supplied by the external directory
  - Derived fields: units_used, bill_amount, current_balance are always
    recomputed by the engine, never accepted from callers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money and meter units
  2. Carry-forward: A cycle's opening balance equals the prior cycle's
     closing balance (enforced, audited, repairable)
  3. Type Safety: Strong typing for IDs prevents mixing tenant/cycle IDs
  4. Server-computed: No derived field is ever written with a caller value

SEE ALSO:
  - period.go: Monthly period ordering
  - ledger.go: Cycle creation, reading corrections, forward cascade
  - allocator.go: Payment recording and allocation
  - auditor.go: Carry-forward chain verification and repair
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type CycleID string
type PaymentID string

// =============================================================================
// TENANT - Read-only reference owned by the external directory
// =============================================================================

type TenantStatus string

const (
	TenantActive  TenantStatus = "active"
	TenantVacated TenantStatus = "vacated"
)

// Tenant mirrors the directory record the engine needs for billing.
// The engine never mutates these fields except through the directory
// sync boundary (Store.UpsertTenant).
type Tenant struct {
	ID                    TenantID
	Name                  string
	Phone                 string
	Email                 string
	HouseUnitNumber       string
	MeterConnectionNumber string
	Status                TenantStatus
}

// =============================================================================
// BILLING CYCLE - One tenant-period statement
// =============================================================================

// BillingCycle is the core entity: one per (tenant, month, year).
//
// Derived fields (UnitsUsed, BillAmount, CurrentBalance, PaidAmount) are
// maintained by the engine. PaidAmount is always the sum over the cycle's
// payment rows; CurrentBalance may be negative, denoting credit.
type BillingCycle struct {
	ID       CycleID
	TenantID TenantID
	Period   Period

	PreviousReading decimal.Decimal // meter units, non-negative
	CurrentReading  decimal.Decimal // meter units, non-negative
	UnitsUsed       decimal.Decimal // derived: current - previous

	RatePerUnit    decimal.Decimal // money per unit, non-negative
	StandingCharge decimal.Decimal // money, non-negative
	BillAmount     decimal.Decimal // derived: units*rate + standing

	PreviousBalance decimal.Decimal // prior cycle's CurrentBalance, 0 if first
	PaidAmount      decimal.Decimal // derived: sum of allocated payments
	CurrentBalance  decimal.Decimal // derived: previous + bill - paid

	BillDate time.Time
	DueDate  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recompute refreshes all derived fields from the cycle's inputs.
// PreviousBalance and PaidAmount are inputs here: the ledger sets them
// from the chain and the payment rows before calling Recompute.
func (c *BillingCycle) Recompute() {
	c.UnitsUsed = c.CurrentReading.Sub(c.PreviousReading)
	c.BillAmount = c.UnitsUsed.Mul(c.RatePerUnit).Add(c.StandingCharge)
	c.CurrentBalance = c.PreviousBalance.Add(c.BillAmount).Sub(c.PaidAmount)
}

// CycleStatus is a derived view of CurrentBalance, not stored state.
type CycleStatus string

const (
	StatusOutstanding CycleStatus = "outstanding" // balance > 0
	StatusPaidInFull  CycleStatus = "paid"        // balance == 0
	StatusCredited    CycleStatus = "credited"    // balance < 0
)

func (c *BillingCycle) Status() CycleStatus {
	switch {
	case c.CurrentBalance.IsPositive():
		return StatusOutstanding
	case c.CurrentBalance.IsNegative():
		return StatusCredited
	default:
		return StatusPaidInFull
	}
}

// =============================================================================
// PAYMENT - Operator-recorded receipt of funds
// =============================================================================

type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodMpesa PaymentMethod = "mpesa" // mobile money
	MethodBank  PaymentMethod = "bank"
	MethodOther PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodMpesa, MethodBank, MethodOther:
		return true
	}
	return false
}

// Payment allocates an amount to exactly one billing cycle.
// Amount is always positive; overpayment shows up as a negative
// CurrentBalance on the cycle, not as a negative payment.
type Payment struct {
	ID          PaymentID
	TenantID    TenantID
	CycleID     CycleID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Notes       string
	CreatedAt   time.Time
}
