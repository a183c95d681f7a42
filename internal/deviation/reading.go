package deviation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LimitSide names the calibration limit a reading fell outside of.
type LimitSide string

const (
	LowLimit  LimitSide = "LOW LIMIT"
	HighLimit LimitSide = "HIGH LIMIT"
)

// CalibrationReading is one as-found calibration check of a tool.
type CalibrationReading struct {
	// ParameterName describes the checked point, e.g. "Inside Jaws at 1.0000 in".
	ParameterName string

	// Measured is what the tool reported for the reference standard.
	Measured decimal.Decimal

	// Nominal is the certified value of the reference standard.
	Nominal decimal.Decimal

	// LowerLimit and UpperLimit bound what the tool was required to read.
	LowerLimit decimal.Decimal
	UpperLimit decimal.Decimal

	// Units is a display label only; no conversion is performed.
	Units string
}

// Validate checks the reading's structural invariant.
func (r CalibrationReading) Validate() error {
	if r.LowerLimit.GreaterThan(r.UpperLimit) {
		return fmt.Errorf("%w: calibration lower limit %s exceeds upper limit %s",
			ErrInvalidInput, r.LowerLimit, r.UpperLimit)
	}
	return nil
}

// Deviation returns Measured - Nominal.
func (r CalibrationReading) Deviation() Deviation {
	return CalculateDecimal(r.Measured, r.Nominal)
}

// OutOfTolerance reports whether the tool read outside its own limits.
func (r CalibrationReading) OutOfTolerance() bool {
	return r.Measured.LessThan(r.LowerLimit) || r.Measured.GreaterThan(r.UpperLimit)
}

// ViolatedLimit returns the limit the reading is judged against: the lower
// limit when the tool read below it, otherwise the upper limit.
func (r CalibrationReading) ViolatedLimit() (decimal.Decimal, LimitSide) {
	if r.Measured.LessThan(r.LowerLimit) {
		return r.LowerLimit, LowLimit
	}
	return r.UpperLimit, HighLimit
}
