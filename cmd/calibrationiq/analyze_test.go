package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/ipc"

	"github.com/calibrationiq/calibrationiq/internal/config"
	"github.com/calibrationiq/calibrationiq/internal/impact"
	"github.com/calibrationiq/calibrationiq/internal/metrics"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join("..", "..", "testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

// decodeLines splits the JSON lines written by analyze by their type field.
func decodeLines(t *testing.T, buf *bytes.Buffer) (rows []map[string]any, summary summaryLine) {
	t.Helper()
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(sc.Bytes(), &probe); err != nil {
			t.Fatalf("invalid json line %q: %v", sc.Text(), err)
		}
		switch probe.Type {
		case "row":
			var m map[string]any
			if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
				t.Fatal(err)
			}
			rows = append(rows, m)
		case "summary":
			if err := json.Unmarshal(sc.Bytes(), &summary); err != nil {
				t.Fatal(err)
			}
		default:
			t.Fatalf("unexpected line type %q", probe.Type)
		}
	}
	return rows, summary
}

func TestAnalyze_AllRows(t *testing.T) {
	cfg := loadTestConfig(t)

	var buf bytes.Buffer
	report, err := analyze(cfg, &buf)
	if err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, want 0", report.Failed)
	}

	rows, summary := decodeLines(t, &buf)
	if len(rows) != 10 {
		t.Fatalf("row lines = %d, want 10", len(rows))
	}
	first := rows[0]
	if first["tool"] != "caliper-001" || first["dimension_id"] != "Char 1" {
		t.Errorf("first row = %v", first)
	}
	if first["adjusted_value"] != "0.502" {
		t.Errorf("adjusted_value = %v, want \"0.502\"", first["adjusted_value"])
	}
	if first["final_status"] != "FAIL" || first["run_id"] != report.RunID {
		t.Errorf("first row status/run = %v/%v", first["final_status"], first["run_id"])
	}

	if summary.RunID != report.RunID || len(summary.Tools) != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	caliper, micrometer := summary.Tools[0], summary.Tools[1]
	if caliper.Summary == nil || caliper.Summary.Failures != 7 || caliper.Summary.NewFailures != 6 {
		t.Errorf("caliper summary = %+v", caliper.Summary)
	}
	if caliper.Conservative || caliper.LimitSide != "LOW LIMIT" {
		t.Errorf("caliper conservative/limit = %v/%s", caliper.Conservative, caliper.LimitSide)
	}
	if micrometer.Summary == nil || micrometer.Summary.Failures != 1 {
		t.Errorf("micrometer summary = %+v", micrometer.Summary)
	}
	if !micrometer.Conservative || micrometer.LimitSide != "HIGH LIMIT" {
		t.Errorf("micrometer conservative/limit = %v/%s", micrometer.Conservative, micrometer.LimitSide)
	}
	if len(micrometer.Actions) != 1 || micrometer.Actions[impact.RiskMedium] != impact.RiskMedium.RecommendedAction() {
		t.Errorf("micrometer actions = %v, want only the MEDIUM action", micrometer.Actions)
	}
	if caliper.Actions[impact.RiskHigh] != impact.RiskHigh.RecommendedAction() {
		t.Errorf("caliper actions = %v, want a HIGH action", caliper.Actions)
	}
}

func TestAnalyze_FailuresOnly(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Output.FailuresOnly = true

	var buf bytes.Buffer
	if _, err := analyze(cfg, &buf); err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	rows, _ := decodeLines(t, &buf)
	if len(rows) != 8 {
		t.Fatalf("row lines = %d, want 8", len(rows))
	}
	for _, r := range rows {
		if r["final_status"] != "FAIL" {
			t.Errorf("row %v passed but was emitted", r["dimension_id"])
		}
	}
}

func TestAnalyze_BrokenToolDoesNotStopOthers(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Tools[0].CalibrationFile = filepath.Join(t.TempDir(), "missing.yaml")

	var buf bytes.Buffer
	report, err := analyze(cfg, &buf)
	if err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1", report.Failed)
	}
	rows, summary := decodeLines(t, &buf)
	if len(rows) != 3 {
		t.Errorf("row lines = %d, want 3", len(rows))
	}
	if summary.Tools[0].Error == "" {
		t.Error("broken tool has no error in summary")
	}
}

func TestAnalyze_EmptyMeasurements(t *testing.T) {
	cfg := loadTestConfig(t)
	empty := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(empty, []byte("job_number,sample_serial_number,dimension_id,feature_name,measured_value,nominal_value,original_upper_tol,original_lower_tol,tolerance_type,criticality\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Tools = cfg.Tools[:1]
	cfg.Tools[0].MeasurementsFile = empty

	var buf bytes.Buffer
	report, err := analyze(cfg, &buf)
	if err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	_, summary := decodeLines(t, &buf)
	if report.Failed != 0 || summary.Tools[0].Status != "empty" || summary.Tools[0].Summary != nil {
		t.Errorf("empty tool report = %+v", summary.Tools[0])
	}
}

func TestAnalyze_InToleranceToolHasNoViolatedLimit(t *testing.T) {
	cfg := loadTestConfig(t)
	cal := filepath.Join(t.TempDir(), "in-tolerance.yaml")
	doc := "max_error_as_found: 1.0005\nnominal_for_max_error: 1.0000\nlower_limit: 0.9990\nupper_limit: 1.0010\n"
	if err := os.WriteFile(cal, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Tools = cfg.Tools[:1]
	cfg.Tools[0].CalibrationFile = cal

	var buf bytes.Buffer
	if _, err := analyze(cfg, &buf); err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	_, summary := decodeLines(t, &buf)
	tr := summary.Tools[0]
	if tr.OutOfTolerance {
		t.Fatal("out_of_tolerance = true, want false")
	}
	if tr.ViolatedLimit != "" || tr.LimitSide != "" {
		t.Errorf("violated_limit/limit_side = %q/%q, want both empty", tr.ViolatedLimit, tr.LimitSide)
	}
	if tr.Deviation == nil || tr.Deviation.String() != "+0.0005" {
		t.Errorf("deviation = %v, want +0.0005", tr.Deviation)
	}
}

func TestAnalyze_SkippedRowsCarryFileLines(t *testing.T) {
	cfg := loadTestConfig(t)
	data := filepath.Join(t.TempDir(), "data.csv")
	csv := "job_number,sample_serial_number,dimension_id,feature_name,measured_value,nominal_value,original_upper_tol,original_lower_tol,tolerance_type,criticality\n" +
		"WO-001,SN-101,Char 1,Hole Diameter,1.0005,1.0000,1.0010,0.9990,BILATERAL,Critical\n" +
		"WO-001,SN-101,Char 2,Step Height,1.2500,1.2500,1.2480,1.2520,BILATERAL,Major\n" +
		"WO-001,SN-101,Char 3,Bore Depth,abc,2.0000,2.0010,1.9990,BILATERAL,Minor\n"
	if err := os.WriteFile(data, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.Tools = cfg.Tools[:1]
	cfg.Tools[0].MeasurementsFile = data

	var buf bytes.Buffer
	if _, err := analyze(cfg, &buf); err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	rows, summary := decodeLines(t, &buf)
	if len(rows) != 1 {
		t.Errorf("row lines = %d, want 1", len(rows))
	}
	tr := summary.Tools[0]
	if tr.Skipped != 2 || len(tr.SkippedRows) != 2 {
		t.Fatalf("skipped = %d %v, want 2", tr.Skipped, tr.SkippedRows)
	}
	// Parse failures come first, then rows the evaluator rejected.
	if !strings.Contains(tr.SkippedRows[0], "line 4") || !strings.Contains(tr.SkippedRows[0], "measured_value") {
		t.Errorf("skipped_rows[0] = %q, want line 4 measured_value", tr.SkippedRows[0])
	}
	if !strings.Contains(tr.SkippedRows[1], "line 3") || !strings.Contains(tr.SkippedRows[1], "original_lower_tol") {
		t.Errorf("skipped_rows[1] = %q, want line 3 original_lower_tol", tr.SkippedRows[1])
	}
}

func TestAnalyze_MetricsAccumulateAcrossRuns(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Output.MetricsFile = filepath.Join(t.TempDir(), "calibrationiq.prom")

	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		if _, err := analyze(cfg, &buf); err != nil {
			t.Fatalf("analyze() run %d error = %v", i+1, err)
		}
	}

	mf, err := os.Open(cfg.Output.MetricsFile)
	if err != nil {
		t.Fatalf("open metrics file: %v", err)
	}
	defer mf.Close()
	mfs, err := metrics.ParseText(mf)
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}
	if got := metrics.Sum(mfs[metrics.RowsEvaluated], map[string]string{"status": "FAIL"}); got != 16 {
		t.Errorf("FAIL rows after two runs = %v, want 16", got)
	}
	if got := metrics.Sum(mfs[metrics.EvaluationDuration], nil); got != 2 {
		t.Errorf("duration observations = %v, want 2 (one run, two tools)", got)
	}
}

func TestAnalyze_UnreadableMetricsFileStartsFresh(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Output.MetricsFile = filepath.Join(t.TempDir(), "calibrationiq.prom")
	if err := os.WriteFile(cfg.Output.MetricsFile, []byte("not a metric {{{\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := analyze(cfg, &buf); err != nil {
		t.Fatalf("analyze() error = %v", err)
	}
	mf, err := os.Open(cfg.Output.MetricsFile)
	if err != nil {
		t.Fatalf("open metrics file: %v", err)
	}
	defer mf.Close()
	mfs, err := metrics.ParseText(mf)
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}
	if got := metrics.Sum(mfs[metrics.RowsEvaluated], map[string]string{"status": "FAIL"}); got != 8 {
		t.Errorf("FAIL rows = %v, want 8", got)
	}
}

func TestAnalyze_WritesArrowAndMetrics(t *testing.T) {
	cfg := loadTestConfig(t)
	dir := t.TempDir()
	cfg.Output.ArrowFile = filepath.Join(dir, "enriched.arrow")
	cfg.Output.MetricsFile = filepath.Join(dir, "calibrationiq.prom")

	var buf bytes.Buffer
	if _, err := analyze(cfg, &buf); err != nil {
		t.Fatalf("analyze() error = %v", err)
	}

	f, err := os.Open(cfg.Output.ArrowFile)
	if err != nil {
		t.Fatalf("open arrow file: %v", err)
	}
	defer f.Close()
	rdr, err := ipc.NewReader(f)
	if err != nil {
		t.Fatalf("ipc.NewReader() error = %v", err)
	}
	defer rdr.Release()
	var n int64
	for rdr.Next() {
		n += rdr.Record().NumRows()
	}
	if n != 10 {
		t.Errorf("arrow rows = %d, want 10", n)
	}

	mf, err := os.Open(cfg.Output.MetricsFile)
	if err != nil {
		t.Fatalf("open metrics file: %v", err)
	}
	defer mf.Close()
	mfs, err := metrics.ParseText(mf)
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}
	if got := metrics.Sum(mfs[metrics.RowsEvaluated], map[string]string{"status": "FAIL"}); got != 8 {
		t.Errorf("FAIL rows in metrics = %v, want 8", got)
	}
}
