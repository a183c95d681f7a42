package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/calibrationiq/calibrationiq/internal/config"
	"github.com/calibrationiq/calibrationiq/internal/deviation"
	"github.com/calibrationiq/calibrationiq/internal/impact"
	"github.com/calibrationiq/calibrationiq/internal/metrics"
	"github.com/calibrationiq/calibrationiq/internal/source"
	"github.com/calibrationiq/calibrationiq/internal/table"
)

// rowLine is one enriched row on stdout.
type rowLine struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	table.Row
}

// toolReport is the per-tool impact summary. Actions holds the recommended
// disposition for each risk level with at least one failing row, and
// SkippedRows describes every skipped row with its measurements file line.
type toolReport struct {
	Tool           string                      `json:"tool"`
	Parameter      string                      `json:"parameter,omitempty"`
	Units          string                      `json:"units,omitempty"`
	Deviation      *deviation.Deviation        `json:"deviation,omitempty"`
	Direction      deviation.Direction         `json:"direction,omitempty"`
	Conservative   bool                        `json:"conservative"`
	OutOfTolerance bool                        `json:"out_of_tolerance"`
	ViolatedLimit  string                      `json:"violated_limit,omitempty"`
	LimitSide      deviation.LimitSide         `json:"limit_side,omitempty"`
	Status         impact.ResultStatus         `json:"status,omitempty"`
	Summary        *impact.Summary             `json:"summary,omitempty"`
	Actions        map[impact.RiskLevel]string `json:"actions,omitempty"`
	Skipped        int                         `json:"skipped"`
	SkippedRows    []string                    `json:"skipped_rows,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// summaryLine closes every run on stdout.
type summaryLine struct {
	Type  string       `json:"type"`
	RunID string       `json:"run_id"`
	Tools []toolReport `json:"tools"`
}

// runReport is what one analysis pass produced.
type runReport struct {
	RunID  string
	Tools  []toolReport
	Failed int // tools that could not be analyzed at all
}

// analyze runs every configured tool once and writes JSON lines to out.
// A tool whose inputs cannot be loaded is reported and skipped; the other
// tools still run.
func analyze(cfg *config.Config, out io.Writer) (*runReport, error) {
	eval, err := impact.NewEvaluator(impact.Policy{
		AllowanceFraction: cfg.Analysis.Fraction(),
		Workers:           cfg.Analysis.Workers,
	})
	if err != nil {
		return nil, err
	}

	report := &runReport{RunID: uuid.NewString()}
	rec := metrics.NewRecorder()
	if cfg.Output.MetricsFile != "" {
		restoreMetrics(rec, cfg.Output.MetricsFile)
	}
	enc := json.NewEncoder(out)
	var all []table.Row

	slog.Info("analysis: run started", "run_id", report.RunID, "tools", len(cfg.Tools))

	for _, tool := range cfg.Tools {
		tr, rows, err := analyzeTool(tool, eval, rec)
		if err != nil {
			slog.Error("analysis: tool failed", "tool", tool.ID, "err", err)
			tr.Error = err.Error()
			report.Failed++
			report.Tools = append(report.Tools, tr)
			continue
		}
		report.Tools = append(report.Tools, tr)
		all = append(all, rows...)

		for _, r := range rows {
			if cfg.Output.FailuresOnly && !r.Failed() {
				continue
			}
			if err := enc.Encode(rowLine{Type: "row", RunID: report.RunID, Row: r}); err != nil {
				return report, fmt.Errorf("analysis: write row: %w", err)
			}
		}
	}

	if err := enc.Encode(summaryLine{Type: "summary", RunID: report.RunID, Tools: report.Tools}); err != nil {
		return report, fmt.Errorf("analysis: write summary: %w", err)
	}

	if cfg.Output.ArrowFile != "" {
		if err := writeFile(cfg.Output.ArrowFile, func(w io.Writer) error { return table.WriteIPC(w, all) }); err != nil {
			return report, err
		}
		slog.Info("analysis: arrow table written", "path", cfg.Output.ArrowFile, "rows", len(all))
	}
	if cfg.Output.MetricsFile != "" {
		if err := writeFile(cfg.Output.MetricsFile, rec.WriteText); err != nil {
			return report, err
		}
	}

	slog.Info("analysis: run finished",
		"run_id", report.RunID,
		"rows_evaluated", rec.Total(metrics.RowsEvaluated),
		"rows_skipped", rec.Total(metrics.RowsSkipped),
		"tools_failed", report.Failed,
	)
	return report, nil
}

// analyzeTool loads one tool's inputs and evaluates its measurements.
func analyzeTool(tool config.Tool, eval *impact.Evaluator, rec *metrics.Recorder) (toolReport, []table.Row, error) {
	tr := toolReport{Tool: tool.ID}

	reading, err := source.LoadCalibration(tool.CalibrationFile)
	if err != nil {
		return tr, nil, err
	}
	dev := reading.Deviation()

	tr.Parameter = reading.ParameterName
	tr.Units = reading.Units
	tr.Deviation = &dev
	tr.Direction = dev.Direction()
	tr.Conservative = dev.Conservative()
	tr.OutOfTolerance = reading.OutOfTolerance()
	if tr.OutOfTolerance {
		limit, side := reading.ViolatedLimit()
		tr.ViolatedLimit = limit.String()
		tr.LimitSide = side
	}

	if !tr.Conservative {
		slog.Warn("analysis: tool reads low, parts may be larger than reported",
			"tool", tool.ID, "deviation", dev.String())
	}

	ms, err := source.LoadMeasurements(tool.MeasurementsFile)
	if err != nil {
		return tr, nil, err
	}
	rec.ObserveSkipped(tool.ID, len(ms.Skipped))

	start := time.Now()
	res := eval.Evaluate(dev, ms.Rows)
	rec.Observe(tool.ID, dev, res, time.Since(start))

	// Evaluator indexes refer to ms.Rows; map them back to file lines.
	for _, s := range res.Skipped {
		if s.Index >= 0 && s.Index < len(ms.Lines) {
			s.Line = ms.Lines[s.Index]
		}
	}
	for _, s := range append(ms.Skipped, res.Skipped...) {
		slog.Warn("analysis: measurement row skipped",
			"tool", tool.ID, "line", s.Line, "field", s.Field, "err", s.Error())
		tr.SkippedRows = append(tr.SkippedRows, s.Error())
	}

	tr.Status = res.Status
	tr.Skipped = len(ms.Skipped) + len(res.Skipped)
	if res.Empty() {
		slog.Warn("analysis: no measurements evaluated", "tool", tool.ID, "skipped", tr.Skipped)
		return tr, nil, nil
	}

	sum := impact.Summarize(res.Rows)
	tr.Summary = &sum
	for level, n := range sum.FailuresByRisk {
		if n == 0 {
			continue
		}
		if tr.Actions == nil {
			tr.Actions = make(map[impact.RiskLevel]string)
		}
		tr.Actions[level] = level.RecommendedAction()
	}
	slog.Info("analysis: tool evaluated",
		"tool", tool.ID,
		"deviation", dev.String(),
		"direction", tr.Direction,
		"rows", sum.Total,
		"failures", sum.Failures,
		"new_failures", sum.NewFailures,
		"high_risk", sum.FailuresByRisk[impact.RiskHigh],
	)
	return tr, table.Tag(tool.ID, dev, res.Rows), nil
}

// restoreMetrics seeds rec with the counters of an earlier run's metrics
// file, if there is one, so the rewritten file keeps cumulative totals.
func restoreMetrics(rec *metrics.Recorder, path string) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Warn("analysis: previous metrics unreadable, starting from zero", "path", path, "err", err)
		return
	}
	defer f.Close()
	if err := rec.Restore(f); err != nil {
		slog.Warn("analysis: previous metrics unreadable, starting from zero", "path", path, "err", err)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("analysis: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("analysis: write %s: %w", path, err)
	}
	return f.Close()
}
