package impact

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Criticality classifies how important a feature is to the part's function.
type Criticality string

const (
	Critical     Criticality = "Critical"
	Major        Criticality = "Major"
	Minor        Criticality = "Minor"
	NotSpecified Criticality = "NotSpecified"
)

// ParseCriticality maps s to a Criticality, ignoring case and the space in
// "Not Specified".
func ParseCriticality(s string) (Criticality, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch norm {
	case "critical":
		return Critical, nil
	case "major":
		return Major, nil
	case "minor":
		return Minor, nil
	case "notspecified":
		return NotSpecified, nil
	case "":
		return "", fmt.Errorf("criticality is empty")
	default:
		return "", fmt.Errorf("unknown criticality %q", s)
	}
}

// Valid reports whether c is one of the four known levels.
func (c Criticality) Valid() bool {
	switch c {
	case Critical, Major, Minor, NotSpecified:
		return true
	}
	return false
}

// ToleranceType describes how a tolerance band is specified.
type ToleranceType string

// Bilateral is the only tolerance type the evaluator accepts.
const Bilateral ToleranceType = "BILATERAL"

// ParseToleranceType normalises s; only BILATERAL is accepted.
func ParseToleranceType(s string) (ToleranceType, error) {
	t := ToleranceType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case Bilateral:
		return t, nil
	case "":
		return "", fmt.Errorf("tolerance type is empty")
	default:
		return "", fmt.Errorf("unsupported tolerance type %q", s)
	}
}

// Status is the pass/fail outcome of a measurement against a band.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Allowance eligibility labels.
const (
	AllowanceYes               = "YES"
	AllowanceKeyCharacteristic = "NO - KC"
)

// Change relates the status before adjustment to the status after it.
type Change string

const (
	StillPassing Change = "STILL_PASSING"
	NewFailure   Change = "NEW_FAILURE"
	StillFailing Change = "STILL_FAILING"
	Recovered    Change = "RECOVERED"
)

// Key identifies one measured characteristic instance.
type Key struct {
	JobNumber          string `json:"job_number"`
	SampleSerialNumber string `json:"sample_serial_number"`
	DimensionID        string `json:"dimension_id"`
}

// Label renders the identity tuple as job/serial/dimension.
func (k Key) Label() string {
	return k.JobNumber + "/" + k.SampleSerialNumber + "/" + k.DimensionID
}

// MeasurementRecord is one historical measurement row as supplied by the
// measurement source. Numeric fields are nullable so a missing value can be
// told apart from zero.
type MeasurementRecord struct {
	Key
	FeatureName      string
	MeasuredValue    decimal.NullDecimal
	NominalValue     decimal.NullDecimal
	OriginalUpperTol decimal.NullDecimal
	OriginalLowerTol decimal.NullDecimal
	ToleranceType    ToleranceType
	Criticality      Criticality
}

// EnrichedRecord is a MeasurementRecord plus every value derived from it for
// one deviation. It is a fresh value; the source row is untouched.
type EnrichedRecord struct {
	Key
	FeatureName      string          `json:"feature_name"`
	MeasuredValue    decimal.Decimal `json:"measured_value"`
	NominalValue     decimal.Decimal `json:"nominal_value"`
	OriginalUpperTol decimal.Decimal `json:"original_upper_tol"`
	OriginalLowerTol decimal.Decimal `json:"original_lower_tol"`
	ToleranceType    ToleranceType   `json:"tolerance_type"`
	Criticality      Criticality     `json:"criticality"`

	AdjustedValue     decimal.Decimal `json:"adjusted_value"`
	AllowanceEligible string          `json:"allowance_eligible"`
	ExpandedUpperTol  decimal.Decimal `json:"expanded_upper_tol"`
	ExpandedLowerTol  decimal.Decimal `json:"expanded_lower_tol"`
	FinalStatus       Status          `json:"final_status"`

	// OriginalStatus is the raw measured value against the original band.
	OriginalStatus Status `json:"original_status"`
	Change         Change `json:"change"`

	// Exceedance is how far AdjustedValue lies outside the expanded band;
	// zero when the row passes.
	Exceedance decimal.Decimal `json:"exceedance"`
	Risk       RiskLevel       `json:"risk"`
}

// Failed reports whether the row fails after adjustment.
func (r EnrichedRecord) Failed() bool { return r.FinalStatus == StatusFail }
