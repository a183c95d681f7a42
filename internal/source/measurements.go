package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/calibrationiq/calibrationiq/internal/deviation"
	"github.com/calibrationiq/calibrationiq/internal/impact"
)

// Column names of a measurement file.
const (
	ColJobNumber          = "job_number"
	ColSampleSerialNumber = "sample_serial_number"
	ColDimensionID        = "dimension_id"
	ColFeatureName        = "feature_name"
	ColMeasuredValue      = "measured_value"
	ColNominalValue       = "nominal_value"
	ColOriginalUpperTol   = "original_upper_tol"
	ColOriginalLowerTol   = "original_lower_tol"
	ColToleranceType      = "tolerance_type"
	ColCriticality        = "criticality"
)

// RequiredColumns lists every column a measurement file must carry.
var RequiredColumns = []string{
	ColJobNumber, ColSampleSerialNumber, ColDimensionID, ColFeatureName,
	ColMeasuredValue, ColNominalValue, ColOriginalUpperTol, ColOriginalLowerTol,
	ColToleranceType, ColCriticality,
}

// Measurements is the parsed content of one measurement file.
type Measurements struct {
	// Rows holds every row that could be parsed, in file order.
	Rows []impact.MeasurementRecord

	// Lines[i] is the 1-based source line of Rows[i].
	Lines []int

	// Skipped lists rows that could not be parsed, in file order.
	Skipped []*impact.RowValidationError
}

// ReadMeasurements parses a measurement CSV from r.
// A header-only or empty input yields an empty, non-nil Rows slice.
func ReadMeasurements(r io.Reader) (*Measurements, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	out := &Measurements{Rows: []impact.MeasurementRecord{}}

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		return nil, fmt.Errorf("source: read csv header: %w", err)
	}

	cols := make(map[string]int, len(headers))
	for i, h := range headers {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, req := range RequiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("source: missing required csv column %q", req)
		}
	}

	for index := 0; ; index++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			out.Skipped = append(out.Skipped, &impact.RowValidationError{
				Index:  index,
				Line:   line,
				Reason: "malformed csv record",
				Err:    err,
			})
			continue
		}

		line, _ := reader.FieldPos(0)
		row, verr := parseRow(record, cols)
		if verr != nil {
			verr.Index = index
			verr.Line = line
			out.Skipped = append(out.Skipped, verr)
			continue
		}
		out.Rows = append(out.Rows, row)
		out.Lines = append(out.Lines, line)
	}
	return out, nil
}

// LoadMeasurements reads the measurement CSV at path.
func LoadMeasurements(path string) (*Measurements, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open measurements: %w", err)
	}
	defer f.Close()
	return ReadMeasurements(f)
}

// parseRow converts one record. Text fields are copied as-is; semantic checks
// on them belong to the evaluator.
func parseRow(record []string, cols map[string]int) (impact.MeasurementRecord, *impact.RowValidationError) {
	get := func(col string) string {
		if i := cols[col]; i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	row := impact.MeasurementRecord{
		Key: impact.Key{
			JobNumber:          get(ColJobNumber),
			SampleSerialNumber: get(ColSampleSerialNumber),
			DimensionID:        get(ColDimensionID),
		},
		FeatureName:   get(ColFeatureName),
		ToleranceType: impact.ToleranceType(get(ColToleranceType)),
		Criticality:   impact.Criticality(get(ColCriticality)),
	}
	// Unrecognised values are kept verbatim so the evaluator can report them.
	if tt, err := impact.ParseToleranceType(string(row.ToleranceType)); err == nil {
		row.ToleranceType = tt
	}
	if c, err := impact.ParseCriticality(string(row.Criticality)); err == nil {
		row.Criticality = c
	}

	numeric := []struct {
		col string
		dst *decimal.NullDecimal
	}{
		{ColMeasuredValue, &row.MeasuredValue},
		{ColNominalValue, &row.NominalValue},
		{ColOriginalUpperTol, &row.OriginalUpperTol},
		{ColOriginalLowerTol, &row.OriginalLowerTol},
	}
	for _, n := range numeric {
		text := get(n.col)
		if text == "" {
			continue
		}
		v, err := deviation.ParseQuantity(text)
		if err != nil {
			return impact.MeasurementRecord{}, &impact.RowValidationError{
				Key:    row.Key,
				Field:  n.col,
				Reason: fmt.Sprintf("cannot parse %q as a number", text),
				Err:    err,
			}
		}
		*n.dst = decimal.NewNullDecimal(v)
	}
	return row, nil
}
