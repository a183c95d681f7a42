// Package metrics records what each impact analysis run did as Prometheus
// metrics and renders them in the text exposition format.
//
// A Recorder owns a private registry, so several recorders (one per run, or
// one per test) never collide. Exported series:
//   - calibrationiq_rows_evaluated_total{tool,status}: evaluated rows by final status
//   - calibrationiq_rows_skipped_total{tool}: rows left out by validation
//   - calibrationiq_tool_deviation{tool}: last deviation applied to the tool
//   - calibrationiq_evaluation_duration_seconds{tool}: wall time per Evaluate call
//
// WriteText renders the registry for a textfile collector. Restore parses a
// previous exposition with ParseText and carries its row counters forward,
// so a metrics file rewritten on every run still holds monotonic totals.
// Sum reads values back out of parsed families.
package metrics
