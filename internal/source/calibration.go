package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/calibrationiq/calibrationiq/internal/deviation"
)

// Quantity is a number decoded from its literal YAML/JSON text.
type Quantity struct {
	Value decimal.Decimal
	Set   bool
}

// UnmarshalYAML parses the scalar's source text as an exact decimal.
func (q *Quantity) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a number", deviation.ErrInvalidInput, n.Line)
	}
	if n.Tag == "!!null" {
		*q = Quantity{}
		return nil
	}
	v, err := deviation.ParseQuantity(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*q = Quantity{Value: v, Set: true}
	return nil
}

// Calibration mirrors the on-disk calibration document.
type Calibration struct {
	ParameterName      string   `yaml:"parameter_name"`
	MaxErrorAsFound    Quantity `yaml:"max_error_as_found"`
	NominalForMaxError Quantity `yaml:"nominal_for_max_error"`
	LowerLimit         Quantity `yaml:"lower_limit"`
	UpperLimit         Quantity `yaml:"upper_limit"`
	Units              string   `yaml:"units"`
}

// Reading checks that every numeric field is present and converts c into a
// validated CalibrationReading.
func (c Calibration) Reading() (deviation.CalibrationReading, error) {
	fields := []struct {
		name string
		q    Quantity
	}{
		{"max_error_as_found", c.MaxErrorAsFound},
		{"nominal_for_max_error", c.NominalForMaxError},
		{"lower_limit", c.LowerLimit},
		{"upper_limit", c.UpperLimit},
	}
	for _, f := range fields {
		if !f.q.Set {
			return deviation.CalibrationReading{}, fmt.Errorf("%w: %s is required", deviation.ErrInvalidInput, f.name)
		}
	}

	r := deviation.CalibrationReading{
		ParameterName: c.ParameterName,
		Measured:      c.MaxErrorAsFound.Value,
		Nominal:       c.NominalForMaxError.Value,
		LowerLimit:    c.LowerLimit.Value,
		UpperLimit:    c.UpperLimit.Value,
		Units:         c.Units,
	}
	if err := r.Validate(); err != nil {
		return deviation.CalibrationReading{}, err
	}
	return r, nil
}

// DecodeCalibration reads one calibration document from r. JSON input is
// accepted as well, being a subset of YAML.
func DecodeCalibration(r io.Reader) (deviation.CalibrationReading, error) {
	var c Calibration
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return deviation.CalibrationReading{}, fmt.Errorf("source: calibration: %w: empty document", deviation.ErrInvalidInput)
		}
		return deviation.CalibrationReading{}, fmt.Errorf("source: calibration: %w", err)
	}
	reading, err := c.Reading()
	if err != nil {
		return deviation.CalibrationReading{}, fmt.Errorf("source: calibration: %w", err)
	}
	return reading, nil
}

// LoadCalibration reads the calibration document at path.
func LoadCalibration(path string) (deviation.CalibrationReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return deviation.CalibrationReading{}, fmt.Errorf("source: open calibration: %w", err)
	}
	defer f.Close()
	return DecodeCalibration(f)
}
