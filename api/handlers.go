/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the ledger, allocator, and auditor. No
  billing arithmetic happens here.

ENDPOINTS:
  Tenants:
    GET    /api/tenants                      List tenant references
    PUT    /api/tenants/{id}                 Directory sync upsert
    GET    /api/tenants/{id}/cycles          Cycle history, newest first
    GET    /api/tenants/{id}/payments        Payment history
    POST   /api/tenants/{id}/payments/auto   Auto-allocate a payment
    GET    /api/tenants/{id}/audit           Carry-forward chain check
    POST   /api/tenants/{id}/repair          Explicit chain repair

  Cycles:
    POST   /api/cycles                       Record a meter reading
    GET    /api/cycles/{id}                  Cycle with derived fields
    PUT    /api/cycles/{id}/readings         Correct readings (cascades)
    DELETE /api/cycles/{id}                  Delete (CycleInUse policy)
    GET    /api/cycles/{id}/payments         Payments for one cycle

  Payments:
    POST   /api/payments                     Record against a chosen cycle
    PUT    /api/payments/{id}                Correct a payment
    DELETE /api/payments/{id}                Reverse a payment

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the engine's
  error taxonomy:
  - 400: invalid reading, invalid amount, malformed input
  - 404: tenant/cycle/payment not found
  - 409: duplicate cycle, cycle in use, concurrency conflict
  - 500: everything else

SECURITY NOTE:
  No authentication middleware. Auth lives in the operator-facing layer
  in front of this service.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nyumba/billing-engine/billing"
)

// =============================================================================
// HANDLER
// =============================================================================

// Defaults are applied when a create request omits tariff fields.
type Defaults struct {
	RatePerUnit    decimal.Decimal
	StandingCharge decimal.Decimal
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger    *billing.CycleLedger
	Allocator *billing.PaymentAllocator
	Auditor   *billing.Auditor
	Store     billing.TxStore
	Logger    *zap.Logger
	Defaults  Defaults
}

func NewHandler(ledger *billing.CycleLedger, allocator *billing.PaymentAllocator, auditor *billing.Auditor, store billing.TxStore, logger *zap.Logger, defaults Defaults) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Ledger:    ledger,
		Allocator: allocator,
		Auditor:   auditor,
		Store:     store,
		Logger:    logger,
		Defaults:  defaults,
	}
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Store.ListTenants(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]TenantDTO, 0, len(tenants))
	for _, t := range tenants {
		dtos = append(dtos, toTenantDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertTenant is the directory sync boundary: the external tenant
// directory pushes reference rows here.
func (h *Handler) UpsertTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpsertTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required", nil)
		return
	}
	status := billing.TenantStatus(req.Status)
	if status == "" {
		status = billing.TenantActive
	}
	if status != billing.TenantActive && status != billing.TenantVacated {
		writeBadRequest(w, "status must be active or vacated", nil)
		return
	}

	tenant := billing.Tenant{
		ID:                    billing.TenantID(id),
		Name:                  req.Name,
		Phone:                 req.Phone,
		Email:                 req.Email,
		HouseUnitNumber:       req.HouseUnitNumber,
		MeterConnectionNumber: req.MeterConnectionNumber,
		Status:                status,
	}
	if err := h.Store.UpsertTenant(r.Context(), tenant); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantDTO(tenant))
}

func (h *Handler) ListCyclesForTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := billing.TenantID(chi.URLParam(r, "id"))

	cycles, err := h.Ledger.ListCyclesForTenant(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTOs(cycles))
}

// =============================================================================
// CYCLE HANDLERS
// =============================================================================

func (h *Handler) CreateCycle(w http.ResponseWriter, r *http.Request) {
	var req CreateCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}

	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		writeBadRequest(w, "invalid due_date, expected YYYY-MM-DD", err)
		return
	}

	rate := h.Defaults.RatePerUnit
	if req.RatePerUnit != nil {
		rate = dec(*req.RatePerUnit)
	}
	standing := h.Defaults.StandingCharge
	if req.StandingCharge != nil {
		standing = dec(*req.StandingCharge)
	}

	cycle, warnings, err := h.Ledger.CreateCycle(r.Context(), billing.CreateCycleParams{
		TenantID:       billing.TenantID(req.TenantID),
		Period:         billing.NewPeriod(req.Year, time.Month(req.Month)),
		CurrentReading: dec(req.CurrentReading),
		RatePerUnit:    rate,
		StandingCharge: standing,
		DueDate:        dueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.Logger.Info("billing cycle created",
		zap.String("tenant_id", req.TenantID),
		zap.String("cycle_id", string(cycle.ID)),
		zap.String("period", cycle.Period.String()),
		zap.String("bill_amount", cycle.BillAmount.String()),
	)
	writeJSON(w, http.StatusCreated, CycleResponse{
		Cycle:    toCycleDTO(*cycle),
		Warnings: toWarningDTOs(warnings),
	})
}

func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	cycleID := billing.CycleID(chi.URLParam(r, "id"))

	cycle, err := h.Ledger.GetCycle(r.Context(), cycleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(*cycle))
}

func (h *Handler) UpdateReadings(w http.ResponseWriter, r *http.Request) {
	cycleID := billing.CycleID(chi.URLParam(r, "id"))

	var req UpdateReadingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}

	cycle, warnings, err := h.Ledger.UpdateReadings(r.Context(), cycleID,
		dec(req.PreviousReading), dec(req.CurrentReading))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.Logger.Info("billing cycle readings corrected",
		zap.String("cycle_id", string(cycleID)),
		zap.String("current_balance", cycle.CurrentBalance.String()),
	)
	writeJSON(w, http.StatusOK, CycleResponse{
		Cycle:    toCycleDTO(*cycle),
		Warnings: toWarningDTOs(warnings),
	})
}

func (h *Handler) DeleteCycle(w http.ResponseWriter, r *http.Request) {
	cycleID := billing.CycleID(chi.URLParam(r, "id"))

	if err := h.Ledger.DeleteCycle(r.Context(), cycleID); err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info("billing cycle deleted", zap.String("cycle_id", string(cycleID)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPaymentsForCycle(w http.ResponseWriter, r *http.Request) {
	cycleID := billing.CycleID(chi.URLParam(r, "id"))

	payments, err := h.Allocator.ListPaymentsForCycle(r.Context(), cycleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentsResponse{Payments: toPaymentDTOs(payments)})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}

	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		writeBadRequest(w, "invalid payment_date, expected YYYY-MM-DD", err)
		return
	}
	method := billing.PaymentMethod(req.PaymentMethod)
	if method != "" && !method.Valid() {
		writeBadRequest(w, "unknown payment_method", nil)
		return
	}

	payment, err := h.Allocator.RecordPayment(r.Context(), billing.RecordPaymentParams{
		TenantID:    billing.TenantID(req.TenantID),
		CycleID:     billing.CycleID(req.BillingCycleID),
		Amount:      dec(req.Amount),
		PaymentDate: paymentDate,
		Method:      method,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.Logger.Info("payment recorded",
		zap.String("payment_id", string(payment.ID)),
		zap.String("cycle_id", req.BillingCycleID),
		zap.String("amount", payment.Amount.String()),
	)
	writeJSON(w, http.StatusCreated, toPaymentDTO(*payment))
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := billing.PaymentID(chi.URLParam(r, "id"))

	var req UpdatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		writeBadRequest(w, "invalid payment_date, expected YYYY-MM-DD", err)
		return
	}
	method := billing.PaymentMethod(req.PaymentMethod)
	if method != "" && !method.Valid() {
		writeBadRequest(w, "unknown payment_method", nil)
		return
	}

	payment, err := h.Allocator.UpdatePayment(r.Context(), paymentID, billing.UpdatePaymentParams{
		Amount:      dec(req.Amount),
		PaymentDate: paymentDate,
		Method:      method,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment))
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := billing.PaymentID(chi.URLParam(r, "id"))

	if err := h.Allocator.DeletePayment(r.Context(), paymentID); err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info("payment deleted", zap.String("payment_id", string(paymentID)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AutoAllocatePayment(w http.ResponseWriter, r *http.Request) {
	tenantID := billing.TenantID(chi.URLParam(r, "id"))

	var req AutoAllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body", err)
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		writeBadRequest(w, "invalid payment_date, expected YYYY-MM-DD", err)
		return
	}
	method := billing.PaymentMethod(req.PaymentMethod)
	if method != "" && !method.Valid() {
		writeBadRequest(w, "unknown payment_method", nil)
		return
	}

	payments, err := h.Allocator.RecordPaymentAutoAllocate(r.Context(), billing.AutoAllocateParams{
		TenantID:    tenantID,
		Amount:      dec(req.Amount),
		PaymentDate: paymentDate,
		Method:      method,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.Logger.Info("payment auto-allocated",
		zap.String("tenant_id", string(tenantID)),
		zap.Int("cycles_touched", len(payments)),
	)
	writeJSON(w, http.StatusCreated, PaymentsResponse{Payments: toPaymentDTOs(payments)})
}

func (h *Handler) ListPaymentsForTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := billing.TenantID(chi.URLParam(r, "id"))

	payments, err := h.Allocator.ListPaymentsForTenant(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentsResponse{Payments: toPaymentDTOs(payments)})
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

func (h *Handler) AuditTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := billing.TenantID(chi.URLParam(r, "id"))

	discrepancies, err := h.Auditor.Audit(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditResponse{
		Discrepancies: toDiscrepancyDTOs(discrepancies),
		Consistent:    len(discrepancies) == 0,
	})
}

func (h *Handler) RepairTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := billing.TenantID(chi.URLParam(r, "id"))

	fixed, err := h.Auditor.Repair(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info("carry-forward chain repaired",
		zap.String("tenant_id", string(tenantID)),
		zap.Int("fixed", len(fixed)),
	)
	writeJSON(w, http.StatusOK, AuditResponse{
		Discrepancies: toDiscrepancyDTOs(fixed),
		Consistent:    true,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeBadRequest(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrDuplicateCycle),
		errors.Is(err, billing.ErrCycleInUse),
		errors.Is(err, billing.ErrConcurrencyConflict):
		status = http.StatusConflict
	case billing.IsNotFound(err):
		status = http.StatusNotFound
	case billing.IsClientError(err):
		status = http.StatusBadRequest
	}

	resp := ErrorResponse{Error: err.Error()}
	var inUse *billing.CycleInUseError
	if errors.As(err, &inUse) {
		resp.BlockingCycleID = string(inUse.Blocking)
	}

	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, resp)
}

// parseDate accepts the operator form "2006-01-02" and RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
