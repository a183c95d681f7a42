// Package config loads and watches the analysis configuration file (config.yaml).
//
// Top-level types:
//   - Config{Analysis, Tools, Output, Log}: full config tree parsed from YAML
//   - AnalysisConfig: allowance_fraction (exact decimal text), workers
//   - Tool: id, calibration_file, measurements_file for one out-of-tolerance tool
//   - OutputConfig: failures_only, arrow_file, metrics_file
//   - LogConfig: level (debug|info|warn|error)
//
// Load(path) reads the YAML file, applies defaults (20% allowance, one worker
// per CPU, info logging), validates required fields, then resolves every
// relative file path against the directory holding the config file.
//
// Watch(ctx, path, onChange) uses fsnotify to detect changes to the config
// file and to every input listed by Config.Inputs, and calls onChange with
// the newly parsed Config. It re-adds the watches after each reload so
// atomic-save editors (vim, VS Code) that replace a file keep being
// tracked, and moves the input watches when the tool list changes.
package config
