/*
validator.go - Meter reading plausibility checks

PURPOSE:
  Validates a proposed reading pair (previous, current) before a cycle is
  created or corrected. Catches transcription errors without
  over-constraining legitimate zero-usage periods (vacant units, meter
  stall).

CONTRACT:
  - current < previous is fatal: the cycle is rejected, never clamped
  - consumption above the threshold produces a non-fatal warning
  - zero consumption produces a non-fatal warning
  Warnings ride along in the response body; only the fatal case blocks.

SEE ALSO:
  - ledger.go: Runs validation on create and on reading corrections
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultHighConsumptionThreshold is the consumption (in meter units) above
// which the validator flags a probable transcription error.
const DefaultHighConsumptionThreshold = 50

// =============================================================================
// WARNINGS - Informational, never block a write
// =============================================================================

type WarningCode string

const (
	WarnHighConsumption WarningCode = "high_consumption"
	WarnZeroConsumption WarningCode = "zero_consumption"
)

type Warning struct {
	Code        WarningCode
	Message     string
	Consumption decimal.Decimal
}

// =============================================================================
// READING VALIDATOR
// =============================================================================

type ReadingValidator struct {
	// HighConsumptionThreshold is in meter units.
	HighConsumptionThreshold decimal.Decimal
}

func NewReadingValidator(highConsumptionThreshold decimal.Decimal) ReadingValidator {
	if highConsumptionThreshold.IsZero() || highConsumptionThreshold.IsNegative() {
		highConsumptionThreshold = decimal.NewFromInt(DefaultHighConsumptionThreshold)
	}
	return ReadingValidator{HighConsumptionThreshold: highConsumptionThreshold}
}

// Validate checks a reading pair. A nil error means the pair is writable;
// the warnings, if any, are informational.
func (v ReadingValidator) Validate(previous, current decimal.Decimal) ([]Warning, error) {
	if previous.IsNegative() || current.IsNegative() {
		return nil, &InvalidReadingError{Previous: previous, Current: current}
	}
	if current.LessThan(previous) {
		return nil, &InvalidReadingError{Previous: previous, Current: current}
	}

	consumption := current.Sub(previous)

	var warnings []Warning
	if consumption.GreaterThan(v.HighConsumptionThreshold) {
		warnings = append(warnings, Warning{
			Code:        WarnHighConsumption,
			Message:     fmt.Sprintf("high consumption detected: %s units, please verify the readings", consumption),
			Consumption: consumption,
		})
	}
	if consumption.IsZero() {
		warnings = append(warnings, Warning{
			Code:        WarnZeroConsumption,
			Message:     "zero consumption detected, please verify the meter reading",
			Consumption: consumption,
		})
	}
	return warnings, nil
}
