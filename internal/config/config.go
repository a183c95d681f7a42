package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultAllowanceFraction = "0.20"
	DefaultWorkers           = 0
	DefaultLogLevel          = "info"
)

// Config is the top-level configuration of an analysis run.
// Fields map 1:1 to testdata/config.yaml.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Tools    []Tool         `yaml:"tools"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
}

// AnalysisConfig holds the re-evaluation policy.
type AnalysisConfig struct {
	// AllowanceFraction is the share of each half-band granted to
	// allowance-eligible features, kept as literal text (e.g. "0.20").
	AllowanceFraction string `yaml:"allowance_fraction"`

	// Workers bounds evaluation goroutines per tool; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// Fraction returns AllowanceFraction as an exact decimal. Only valid after
// Load has succeeded.
func (a AnalysisConfig) Fraction() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(a.AllowanceFraction))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Tool describes one tool found out of tolerance and the measurements it took.
type Tool struct {
	// ID is a unique, human-readable identifier, e.g. the asset tag.
	ID string `yaml:"id"`

	// CalibrationFile is a YAML or JSON calibration document.
	CalibrationFile string `yaml:"calibration_file"`

	// MeasurementsFile is the CSV of historical measurements taken with the tool.
	MeasurementsFile string `yaml:"measurements_file"`
}

// OutputConfig controls what a run emits besides the JSON lines on stdout.
type OutputConfig struct {
	// FailuresOnly limits the stdout rows to those that FAIL after adjustment.
	FailuresOnly bool `yaml:"failures_only"`

	// ArrowFile, if set, receives every enriched row of every tool as an
	// Arrow IPC stream.
	ArrowFile string `yaml:"arrow_file"`

	// MetricsFile, if set, receives the run's metrics in Prometheus text format.
	MetricsFile string `yaml:"metrics_file"`
}

// LogConfig selects the log verbosity.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps Level to a slog.Level. Unknown values map to Info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	resolvePaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			AllowanceFraction: DefaultAllowanceFraction,
			Workers:           DefaultWorkers,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	frac, err := decimal.NewFromString(strings.TrimSpace(cfg.Analysis.AllowanceFraction))
	if err != nil {
		return fmt.Errorf("analysis.allowance_fraction %q is not a decimal", cfg.Analysis.AllowanceFraction)
	}
	if frac.IsNegative() || frac.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("analysis.allowance_fraction must be within [0, 1], got %s", frac)
	}
	if cfg.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative")
	}
	if len(cfg.Tools) == 0 {
		return fmt.Errorf("at least one entry in tools is required")
	}

	seen := make(map[string]bool, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		if tool.ID == "" {
			return fmt.Errorf("tools[%d]: id is required", i)
		}
		if seen[tool.ID] {
			return fmt.Errorf("tools[%d]: duplicate id %q", i, tool.ID)
		}
		seen[tool.ID] = true
		if tool.CalibrationFile == "" {
			return fmt.Errorf("tools[%d] %q: calibration_file is required", i, tool.ID)
		}
		if tool.MeasurementsFile == "" {
			return fmt.Errorf("tools[%d] %q: measurements_file is required", i, tool.ID)
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	return nil
}

// Inputs lists the distinct calibration and measurements files named by the
// tools, in tool order.
func (c *Config) Inputs() []string {
	seen := make(map[string]bool, 2*len(c.Tools))
	var out []string
	for _, tool := range c.Tools {
		for _, p := range []string{tool.CalibrationFile, tool.MeasurementsFile} {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// resolvePaths makes every relative file path relative to dir.
func resolvePaths(cfg *Config, dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range cfg.Tools {
		cfg.Tools[i].CalibrationFile = abs(cfg.Tools[i].CalibrationFile)
		cfg.Tools[i].MeasurementsFile = abs(cfg.Tools[i].MeasurementsFile)
	}
	cfg.Output.ArrowFile = abs(cfg.Output.ArrowFile)
	cfg.Output.MetricsFile = abs(cfg.Output.MetricsFile)
}
