/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes for the operator-facing boundary. Derived fields appear only
  in responses; requests carry primitive inputs and the engine computes
  the rest. Monetary values are float64 at the boundary and decimal inside
  the engine.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyumba/billing-engine/billing"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateCycleRequest struct {
	TenantID       string   `json:"tenant_id"`
	Year           int      `json:"year"`
	Month          int      `json:"month"`
	CurrentReading float64  `json:"current_reading"`
	RatePerUnit    *float64 `json:"rate_per_unit,omitempty"`    // default from config when omitted
	StandingCharge *float64 `json:"standing_charge,omitempty"`  // default from config when omitted
	DueDate        string   `json:"due_date"`                   // "2006-01-02"
}

type UpdateReadingsRequest struct {
	PreviousReading float64 `json:"previous_reading"`
	CurrentReading  float64 `json:"current_reading"`
}

type RecordPaymentRequest struct {
	TenantID       string  `json:"tenant_id"`
	BillingCycleID string  `json:"billing_cycle_id"`
	Amount         float64 `json:"amount"`
	PaymentDate    string  `json:"payment_date"` // "2006-01-02"
	PaymentMethod  string  `json:"payment_method,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

type UpdatePaymentRequest struct {
	Amount        float64 `json:"amount"`
	PaymentDate   string  `json:"payment_date"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

type AutoAllocateRequest struct {
	Amount        float64 `json:"amount"`
	PaymentDate   string  `json:"payment_date"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

type UpsertTenantRequest struct {
	Name                  string `json:"name"`
	Phone                 string `json:"phone,omitempty"`
	Email                 string `json:"email,omitempty"`
	HouseUnitNumber       string `json:"house_unit_number,omitempty"`
	MeterConnectionNumber string `json:"meter_connection_number,omitempty"`
	Status                string `json:"status,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type CycleDTO struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenant_id"`
	Period          string  `json:"period"` // "2025-01"
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	PreviousReading float64 `json:"previous_reading"`
	CurrentReading  float64 `json:"current_reading"`
	UnitsUsed       float64 `json:"units_used"`
	RatePerUnit     float64 `json:"rate_per_unit"`
	StandingCharge  float64 `json:"standing_charge"`
	BillAmount      float64 `json:"bill_amount"`
	PreviousBalance float64 `json:"previous_balance"`
	PaidAmount      float64 `json:"paid_amount"`
	CurrentBalance  float64 `json:"current_balance"`
	Status          string  `json:"status"`
	BillDate        string  `json:"bill_date"`
	DueDate         string  `json:"due_date"`
}

type PaymentDTO struct {
	ID             string  `json:"id"`
	TenantID       string  `json:"tenant_id"`
	BillingCycleID string  `json:"billing_cycle_id"`
	Amount         float64 `json:"amount"`
	PaymentDate    string  `json:"payment_date"`
	PaymentMethod  string  `json:"payment_method"`
	Notes          string  `json:"notes,omitempty"`
}

type WarningDTO struct {
	Code        string  `json:"code"`
	Message     string  `json:"message"`
	Consumption float64 `json:"consumption"`
}

type TenantDTO struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Phone                 string `json:"phone,omitempty"`
	Email                 string `json:"email,omitempty"`
	HouseUnitNumber       string `json:"house_unit_number,omitempty"`
	MeterConnectionNumber string `json:"meter_connection_number,omitempty"`
	Status                string `json:"status"`
}

type DiscrepancyDTO struct {
	CycleID  string  `json:"cycle_id"`
	Period   string  `json:"period"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

// CycleResponse pairs a cycle with the validator's non-fatal warnings.
type CycleResponse struct {
	Cycle    CycleDTO     `json:"cycle"`
	Warnings []WarningDTO `json:"warnings,omitempty"`
}

type PaymentsResponse struct {
	Payments []PaymentDTO `json:"payments"`
}

type AuditResponse struct {
	Discrepancies []DiscrepancyDTO `json:"discrepancies"`
	Consistent    bool             `json:"consistent"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// BlockingCycleID is set on cycle_in_use rejections so the caller can
	// delete forward-to-back.
	BlockingCycleID string `json:"blocking_cycle_id,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCycleDTO(c billing.BillingCycle) CycleDTO {
	return CycleDTO{
		ID:              string(c.ID),
		TenantID:        string(c.TenantID),
		Period:          c.Period.String(),
		Year:            c.Period.Year,
		Month:           int(c.Period.Month),
		PreviousReading: c.PreviousReading.InexactFloat64(),
		CurrentReading:  c.CurrentReading.InexactFloat64(),
		UnitsUsed:       c.UnitsUsed.InexactFloat64(),
		RatePerUnit:     c.RatePerUnit.InexactFloat64(),
		StandingCharge:  c.StandingCharge.InexactFloat64(),
		BillAmount:      c.BillAmount.InexactFloat64(),
		PreviousBalance: c.PreviousBalance.InexactFloat64(),
		PaidAmount:      c.PaidAmount.InexactFloat64(),
		CurrentBalance:  c.CurrentBalance.InexactFloat64(),
		Status:          string(c.Status()),
		BillDate:        c.BillDate.UTC().Format(time.RFC3339),
		DueDate:         c.DueDate.UTC().Format(time.RFC3339),
	}
}

func toCycleDTOs(cycles []billing.BillingCycle) []CycleDTO {
	dtos := make([]CycleDTO, 0, len(cycles))
	for _, c := range cycles {
		dtos = append(dtos, toCycleDTO(c))
	}
	return dtos
}

func toPaymentDTO(p billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:             string(p.ID),
		TenantID:       string(p.TenantID),
		BillingCycleID: string(p.CycleID),
		Amount:         p.Amount.InexactFloat64(),
		PaymentDate:    p.PaymentDate.UTC().Format("2006-01-02"),
		PaymentMethod:  string(p.Method),
		Notes:          p.Notes,
	}
}

func toPaymentDTOs(payments []billing.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toPaymentDTO(p))
	}
	return dtos
}

func toWarningDTOs(warnings []billing.Warning) []WarningDTO {
	if len(warnings) == 0 {
		return nil
	}
	dtos := make([]WarningDTO, 0, len(warnings))
	for _, w := range warnings {
		dtos = append(dtos, WarningDTO{
			Code:        string(w.Code),
			Message:     w.Message,
			Consumption: w.Consumption.InexactFloat64(),
		})
	}
	return dtos
}

func toTenantDTO(t billing.Tenant) TenantDTO {
	return TenantDTO{
		ID:                    string(t.ID),
		Name:                  t.Name,
		Phone:                 t.Phone,
		Email:                 t.Email,
		HouseUnitNumber:       t.HouseUnitNumber,
		MeterConnectionNumber: t.MeterConnectionNumber,
		Status:                string(t.Status),
	}
}

func toDiscrepancyDTOs(discrepancies []billing.Discrepancy) []DiscrepancyDTO {
	dtos := make([]DiscrepancyDTO, 0, len(discrepancies))
	for _, d := range discrepancies {
		dtos = append(dtos, DiscrepancyDTO{
			CycleID:  string(d.CycleID),
			Period:   d.Period.String(),
			Expected: d.Expected.InexactFloat64(),
			Actual:   d.Actual.InexactFloat64(),
		})
	}
	return dtos
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
