package metrics

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/calibrationiq/calibrationiq/internal/deviation"
	"github.com/calibrationiq/calibrationiq/internal/impact"
)

// Metric names exported by a Recorder.
const (
	RowsEvaluated      = "calibrationiq_rows_evaluated_total"
	RowsSkipped        = "calibrationiq_rows_skipped_total"
	ToolDeviation      = "calibrationiq_tool_deviation"
	EvaluationDuration = "calibrationiq_evaluation_duration_seconds"
)

// Recorder accumulates per-tool analysis metrics. Safe for concurrent use.
type Recorder struct {
	reg       *prometheus.Registry
	evaluated *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	deviation *prometheus.GaugeVec
	duration  *prometheus.HistogramVec
}

// NewRecorder returns a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		reg: reg,
		evaluated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: RowsEvaluated,
				Help: "Measurement rows evaluated, by final status",
			},
			[]string{"tool", "status"},
		),
		skipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: RowsSkipped,
				Help: "Measurement rows skipped because they failed validation",
			},
			[]string{"tool"},
		),
		deviation: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: ToolDeviation,
				Help: "Signed calibration deviation applied to the tool (measured - nominal)",
			},
			[]string{"tool"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    EvaluationDuration,
				Help:    "Time taken to evaluate one measurement batch",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"tool"},
		),
	}
}

// Observe records one evaluated batch for tool.
func (r *Recorder) Observe(tool string, dev deviation.Deviation, res impact.Result, elapsed time.Duration) {
	var pass, fail int
	for _, row := range res.Rows {
		if row.Failed() {
			fail++
		} else {
			pass++
		}
	}
	r.evaluated.WithLabelValues(tool, string(impact.StatusPass)).Add(float64(pass))
	r.evaluated.WithLabelValues(tool, string(impact.StatusFail)).Add(float64(fail))
	r.skipped.WithLabelValues(tool).Add(float64(len(res.Skipped)))
	r.deviation.WithLabelValues(tool).Set(dev.Float64())
	r.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveSkipped adds rows that never reached the evaluator, such as CSV
// rows with unparseable numbers.
func (r *Recorder) ObserveSkipped(tool string, n int) {
	r.skipped.WithLabelValues(tool).Add(float64(n))
}

// Restore seeds the row counters from a previous WriteText exposition so
// totals keep accumulating across runs that share a metrics file. Gauges and
// histograms describe a single run and are not carried over.
func (r *Recorder) Restore(rd io.Reader) error {
	mfs, err := ParseText(rd)
	if err != nil {
		return err
	}
	for _, m := range mfs[RowsEvaluated].GetMetric() {
		tool, status := labelValue(m, "tool"), labelValue(m, "status")
		if tool == "" || status == "" {
			continue
		}
		r.evaluated.WithLabelValues(tool, status).Add(m.GetCounter().GetValue())
	}
	for _, m := range mfs[RowsSkipped].GetMetric() {
		if tool := labelValue(m, "tool"); tool != "" {
			r.skipped.WithLabelValues(tool).Add(m.GetCounter().GetValue())
		}
	}
	return nil
}

// Gather returns the current metric families keyed by name.
func (r *Recorder) Gather() (map[string]*dto.MetricFamily, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out, nil
}

// Total sums every series of the named family. Histograms contribute their
// sample count. Unknown names yield 0.
func (r *Recorder) Total(name string) float64 {
	mfs, err := r.Gather()
	if err != nil {
		return 0
	}
	return Sum(mfs[name], nil)
}

// WriteText renders every family in the Prometheus text format, sorted by
// name.
func (r *Recorder) WriteText(w io.Writer) error {
	mfs, err := r.Gather()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(mfs))
	for name := range mfs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := expfmt.MetricFamilyToText(w, mfs[name]); err != nil {
			return fmt.Errorf("metrics: write %s: %w", name, err)
		}
	}
	return nil
}
