package deviation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when a value cannot be interpreted as a decimal
// quantity.
var ErrInvalidInput = errors.New("invalid input")

// Direction describes which way a tool's readings are biased.
type Direction string

const (
	ReadsHigh Direction = "HIGH"
	ReadsLow  Direction = "LOW"
	Accurate  Direction = "ACCURATE"
)

// Deviation is a tool's signed calibration error (measured - nominal).
// The zero value is a zero deviation.
type Deviation struct {
	value decimal.Decimal
}

// Calculate returns measured - nominal. Both arguments may be decimal
// strings, decimal.Decimal, json.Number, or Go integer and float values.
// Floats are taken at their shortest decimal representation before the
// subtraction, so 0.123456789 - 0.123456780 yields exactly 0.000000009.
func Calculate(measured, nominal any) (Deviation, error) {
	m, err := ParseQuantity(measured)
	if err != nil {
		return Deviation{}, fmt.Errorf("deviation: measured: %w", err)
	}
	n, err := ParseQuantity(nominal)
	if err != nil {
		return Deviation{}, fmt.Errorf("deviation: nominal: %w", err)
	}
	return CalculateDecimal(m, n), nil
}

// CalculateDecimal is Calculate for values that are already exact.
func CalculateDecimal(measured, nominal decimal.Decimal) Deviation {
	return Deviation{value: measured.Sub(nominal)}
}

// FromDecimal wraps an already-known deviation value.
func FromDecimal(d decimal.Decimal) Deviation {
	return Deviation{value: d}
}

// Limits on a parsed quantity. Arithmetic on a decimal rescales its
// coefficient to the smaller exponent, so an exponent such as 1e400000000
// would allocate a 400-million-digit integer.
const (
	MaxExponent = 32
	MaxDigits   = 38
)

// ParseQuantity converts v to an exact decimal without passing it through
// binary floating-point arithmetic. Values with more than MaxDigits
// significant digits or an exponent beyond ±MaxExponent are rejected.
func ParseQuantity(v any) (decimal.Decimal, error) {
	d, err := parseAny(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxExponent {
		return decimal.Decimal{}, fmt.Errorf("%w: exponent %d of %s outside ±%d", ErrInvalidInput, exp, abbreviate(v), MaxExponent)
	}
	if n := d.NumDigits(); n > MaxDigits {
		return decimal.Decimal{}, fmt.Errorf("%w: %d significant digits exceed %d", ErrInvalidInput, n, MaxDigits)
	}
	return d, nil
}

// abbreviate renders v for an error message without echoing huge inputs.
func abbreviate(v any) string {
	s := fmt.Sprint(v)
	if len(s) > 24 {
		return s[:24] + "..."
	}
	return s
}

func parseAny(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, fmt.Errorf("%w: nil quantity", ErrInvalidInput)
		}
		return *x, nil
	case string:
		return parseString(x)
	case json.Number:
		return parseString(string(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: %v is not a finite quantity", ErrInvalidInput, x)
		}
		return decimal.NewFromFloat(x), nil
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: %v is not a finite quantity", ErrInvalidInput, x)
		}
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unsupported quantity type %T", ErrInvalidInput, v)
	}
}

func parseString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty quantity", ErrInvalidInput)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a decimal quantity", ErrInvalidInput, s)
	}
	return d, nil
}

// Decimal returns the exact deviation.
func (d Deviation) Decimal() decimal.Decimal { return d.value }

// Float64 converts the exact deviation to the nearest float64.
func (d Deviation) Float64() float64 {
	f, _ := d.value.Float64()
	return f
}

// IsZero reports whether the tool showed no error.
func (d Deviation) IsZero() bool { return d.value.IsZero() }

// Equal compares two deviations exactly.
func (d Deviation) Equal(o Deviation) bool { return d.value.Equal(o.value) }

// Direction reports whether the tool reads high, low, or exactly on nominal.
func (d Deviation) Direction() Direction {
	switch d.value.Sign() {
	case 1:
		return ReadsHigh
	case -1:
		return ReadsLow
	default:
		return Accurate
	}
}

// Conservative reports whether reported values never understate true size.
// A tool that reads low makes parts look smaller than they are, which can
// hide oversize parts; that is the non-conservative case.
func (d Deviation) Conservative() bool { return d.value.Sign() >= 0 }

// String returns the exact deviation with an explicit sign, e.g. "-0.0015".
func (d Deviation) String() string {
	if d.value.Sign() > 0 {
		return "+" + d.value.String()
	}
	return d.value.String()
}

// MarshalJSON encodes the deviation as a quoted decimal string, the same
// encoding decimal.Decimal uses, so no digits are lost to float parsing.
func (d Deviation) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.value.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted decimal string, a bare JSON number, or null.
func (d *Deviation) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Deviation{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*d = Deviation{value: v}
	return nil
}
