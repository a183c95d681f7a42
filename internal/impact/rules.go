package impact

import (
	"github.com/shopspring/decimal"

	"github.com/calibrationiq/calibrationiq/internal/deviation"
)

// DefaultAllowanceFraction is the share of each half-band granted to
// allowance-eligible features.
var DefaultAllowanceFraction = decimal.New(20, -2)

// IsKeyCharacteristic reports whether c is exempt from tolerance allowance.
func IsKeyCharacteristic(c Criticality) bool {
	return c == Critical || c == Major
}

// EvaluateRow validates row and derives its enriched form for dev.
// The returned error is always a *RowValidationError with Index -1.
func EvaluateRow(dev deviation.Deviation, row MeasurementRecord, fraction decimal.Decimal) (EnrichedRecord, error) {
	if verr := validateRow(row); verr != nil {
		verr.Index = -1
		return EnrichedRecord{}, verr
	}
	return enrich(dev, row, fraction), nil
}

// enrich applies the adjustment rule to a row that has passed validateRow.
func enrich(dev deviation.Deviation, row MeasurementRecord, fraction decimal.Decimal) EnrichedRecord {
	measured := row.MeasuredValue.Decimal
	nominal := row.NominalValue.Decimal
	upper := row.OriginalUpperTol.Decimal
	lower := row.OriginalLowerTol.Decimal

	out := EnrichedRecord{
		Key:              row.Key,
		FeatureName:      row.FeatureName,
		MeasuredValue:    measured,
		NominalValue:     nominal,
		OriginalUpperTol: upper,
		OriginalLowerTol: lower,
		ToleranceType:    row.ToleranceType,
		Criticality:      row.Criticality,
		AdjustedValue:    Adjust(measured, dev),
		Risk:             RiskFor(row.Criticality),
	}

	if IsKeyCharacteristic(row.Criticality) {
		out.AllowanceEligible = AllowanceKeyCharacteristic
		out.ExpandedLowerTol, out.ExpandedUpperTol = lower, upper
	} else {
		out.AllowanceEligible = AllowanceYes
		out.ExpandedLowerTol, out.ExpandedUpperTol = ExpandBand(nominal, lower, upper, fraction)
	}

	out.FinalStatus = statusOf(out.AdjustedValue, out.ExpandedLowerTol, out.ExpandedUpperTol)
	out.OriginalStatus = statusOf(measured, lower, upper)
	out.Change = changeOf(out.OriginalStatus, out.FinalStatus)
	out.Exceedance = exceedance(out.AdjustedValue, out.ExpandedLowerTol, out.ExpandedUpperTol)
	return out
}

// Adjust recovers the true value of a reading taken with a biased tool.
func Adjust(measured decimal.Decimal, dev deviation.Deviation) decimal.Decimal {
	return measured.Sub(dev.Decimal())
}

// ExpandBand widens each side of [lower, upper] by fraction of that side's
// own distance from nominal, so asymmetric bands widen asymmetrically.
func ExpandBand(nominal, lower, upper, fraction decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	hi := upper.Add(upper.Sub(nominal).Mul(fraction))
	lo := lower.Sub(nominal.Sub(lower).Mul(fraction))
	return lo, hi
}

// statusOf is PASS iff lo <= v <= hi.
func statusOf(v, lo, hi decimal.Decimal) Status {
	if v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi) {
		return StatusPass
	}
	return StatusFail
}

func changeOf(before, after Status) Change {
	switch {
	case before == StatusPass && after == StatusPass:
		return StillPassing
	case before == StatusPass:
		return NewFailure
	case after == StatusFail:
		return StillFailing
	default:
		return Recovered
	}
}

// exceedance returns the distance from v to the band when v is outside it.
func exceedance(v, lo, hi decimal.Decimal) decimal.Decimal {
	switch {
	case v.GreaterThan(hi):
		return v.Sub(hi)
	case v.LessThan(lo):
		return lo.Sub(v)
	default:
		return decimal.Zero
	}
}

// validateRow checks presence of every required field and the band
// invariants. It performs no arithmetic beyond comparisons.
func validateRow(row MeasurementRecord) *RowValidationError {
	fail := func(field, reason string) *RowValidationError {
		return &RowValidationError{Key: row.Key, Field: field, Reason: reason}
	}

	required := []struct {
		field string
		value string
	}{
		{"job_number", row.JobNumber},
		{"sample_serial_number", row.SampleSerialNumber},
		{"dimension_id", row.DimensionID},
	}
	for _, r := range required {
		if r.value == "" {
			return fail(r.field, "missing required field")
		}
	}

	numeric := []struct {
		field string
		value decimal.NullDecimal
	}{
		{"measured_value", row.MeasuredValue},
		{"nominal_value", row.NominalValue},
		{"original_upper_tol", row.OriginalUpperTol},
		{"original_lower_tol", row.OriginalLowerTol},
	}
	for _, n := range numeric {
		if !n.value.Valid {
			return fail(n.field, "missing required field")
		}
	}

	switch {
	case row.ToleranceType == "":
		return fail("tolerance_type", "missing required field")
	case row.ToleranceType != Bilateral:
		return fail("tolerance_type", "unsupported tolerance type "+string(row.ToleranceType))
	}

	switch {
	case row.Criticality == "":
		return fail("criticality", "missing required field")
	case !row.Criticality.Valid():
		return fail("criticality", "unknown criticality "+string(row.Criticality))
	}

	lower := row.OriginalLowerTol.Decimal
	upper := row.OriginalUpperTol.Decimal
	nominal := row.NominalValue.Decimal
	if lower.GreaterThan(upper) {
		return fail("original_lower_tol", "lower tolerance "+lower.String()+" exceeds upper tolerance "+upper.String())
	}
	if nominal.LessThan(lower) || nominal.GreaterThan(upper) {
		return fail("nominal_value", "nominal "+nominal.String()+" outside tolerance band ["+lower.String()+", "+upper.String()+"]")
	}
	return nil
}
