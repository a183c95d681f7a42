package table

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/shopspring/decimal"

	"github.com/calibrationiq/calibrationiq/internal/deviation"
	"github.com/calibrationiq/calibrationiq/internal/impact"
)

// Row is one enriched measurement tagged with the tool whose deviation
// produced it.
type Row struct {
	Tool      string              `json:"tool"`
	Deviation deviation.Deviation `json:"deviation"`
	impact.EnrichedRecord
}

// Tag wraps every record of one tool's result as a Row.
func Tag(tool string, dev deviation.Deviation, records []impact.EnrichedRecord) []Row {
	out := make([]Row, len(records))
	for i, r := range records {
		out[i] = Row{Tool: tool, Deviation: dev, EnrichedRecord: r}
	}
	return out
}

// SchemaVersion is stored in the schema metadata under "calibrationiq.schema_version".
const SchemaVersion = "1"

// Column names, in schema order.
const (
	ColTool               = "tool"
	ColDeviation          = "deviation"
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
	ColAdjustedValue      = "adjusted_value"
	ColAllowanceEligible  = "allowance_eligible"
	ColExpandedUpperTol   = "expanded_upper_tol"
	ColExpandedLowerTol   = "expanded_lower_tol"
	ColFinalStatus        = "final_status"
	ColOriginalStatus     = "original_status"
	ColChange             = "change"
	ColExceedance         = "exceedance"
	ColRisk               = "risk"
	ColAdjustedExact      = "adjusted_value_exact"
	ColExpandedUpperExact = "expanded_upper_tol_exact"
	ColExpandedLowerExact = "expanded_lower_tol_exact"
)

type column struct {
	name   string
	typ    arrow.DataType
	append func(b array.Builder, r Row)
}

func str(get func(Row) string) func(array.Builder, Row) {
	return func(b array.Builder, r Row) {
		b.(*array.StringBuilder).Append(get(r))
	}
}

func f64(get func(Row) decimal.Decimal) func(array.Builder, Row) {
	return func(b array.Builder, r Row) {
		b.(*array.Float64Builder).Append(get(r).InexactFloat64())
	}
}

func exact(get func(Row) decimal.Decimal) func(array.Builder, Row) {
	return func(b array.Builder, r Row) {
		b.(*array.StringBuilder).Append(get(r).String())
	}
}

var columns = []column{
	{ColTool, arrow.BinaryTypes.String, str(func(r Row) string { return r.Tool })},
	{ColDeviation, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.Deviation.Decimal() })},
	{ColJobNumber, arrow.BinaryTypes.String, str(func(r Row) string { return r.JobNumber })},
	{ColSampleSerialNumber, arrow.BinaryTypes.String, str(func(r Row) string { return r.SampleSerialNumber })},
	{ColDimensionID, arrow.BinaryTypes.String, str(func(r Row) string { return r.DimensionID })},
	{ColFeatureName, arrow.BinaryTypes.String, str(func(r Row) string { return r.FeatureName })},
	{ColMeasuredValue, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.MeasuredValue })},
	{ColNominalValue, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.NominalValue })},
	{ColOriginalUpperTol, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.OriginalUpperTol })},
	{ColOriginalLowerTol, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.OriginalLowerTol })},
	{ColToleranceType, arrow.BinaryTypes.String, str(func(r Row) string { return string(r.ToleranceType) })},
	{ColCriticality, arrow.BinaryTypes.String, str(func(r Row) string { return string(r.Criticality) })},
	{ColAdjustedValue, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.AdjustedValue })},
	{ColAllowanceEligible, arrow.BinaryTypes.String, str(func(r Row) string { return r.AllowanceEligible })},
	{ColExpandedUpperTol, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.ExpandedUpperTol })},
	{ColExpandedLowerTol, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.ExpandedLowerTol })},
	{ColFinalStatus, arrow.BinaryTypes.String, str(func(r Row) string { return string(r.FinalStatus) })},
	{ColOriginalStatus, arrow.BinaryTypes.String, str(func(r Row) string { return string(r.OriginalStatus) })},
	{ColChange, arrow.BinaryTypes.String, str(func(r Row) string { return string(r.Change) })},
	{ColExceedance, arrow.PrimitiveTypes.Float64, f64(func(r Row) decimal.Decimal { return r.Exceedance })},
	{ColRisk, arrow.BinaryTypes.String, str(func(r Row) string { return string(r.Risk) })},
	{ColAdjustedExact, arrow.BinaryTypes.String, exact(func(r Row) decimal.Decimal { return r.AdjustedValue })},
	{ColExpandedUpperExact, arrow.BinaryTypes.String, exact(func(r Row) decimal.Decimal { return r.ExpandedUpperTol })},
	{ColExpandedLowerExact, arrow.BinaryTypes.String, exact(func(r Row) decimal.Decimal { return r.ExpandedLowerTol })},
}

var schema = func() *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.name, Type: c.typ}
	}
	md := arrow.NewMetadata([]string{"calibrationiq.schema_version"}, []string{SchemaVersion})
	return arrow.NewSchema(fields, &md)
}()

// Schema returns the fixed schema of the enriched table.
func Schema() *arrow.Schema { return schema }

// Build returns a record holding rows, allocated from mem.
// The caller must Release the record.
func Build(mem memory.Allocator, rows []Row) (arrow.Record, error) {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	b.Reserve(len(rows))
	for _, r := range rows {
		for i, c := range columns {
			c.append(b.Field(i), r)
		}
	}

	rec := b.NewRecord()
	if got, want := rec.NumRows(), int64(len(rows)); got != want {
		rec.Release()
		return nil, fmt.Errorf("table: built %d rows, want %d", got, want)
	}
	return rec, nil
}

// WriteIPC writes rows to w as a single-batch Arrow IPC stream.
func WriteIPC(w io.Writer, rows []Row) error {
	mem := memory.NewGoAllocator()
	rec, err := Build(mem, rows)
	if err != nil {
		return err
	}
	defer rec.Release()

	wr := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return fmt.Errorf("table: write ipc: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("table: close ipc: %w", err)
	}
	return nil
}
