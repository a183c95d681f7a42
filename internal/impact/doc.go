// Package impact re-evaluates historical measurements after a tool is found
// out of tolerance.
//
// record.go defines the measurement row, its identity Key, and the enriched
// row produced for each input. rules.go holds the pure per-row rule:
//
//	adjusted       = measured - deviation
//	eligible       = criticality not in {Critical, Major}
//	expanded_upper = upper + (upper - nominal) * fraction   (eligible only)
//	expanded_lower = lower - (nominal - lower) * fraction   (eligible only)
//	status         = PASS iff expanded_lower <= adjusted <= expanded_upper
//
// evaluator.go provides the Evaluator, which validates a batch, skips rows
// that break a structural invariant (reporting each as a RowValidationError),
// and evaluates the remaining rows in parallel. Output order matches input
// order and the input slice is never modified.
//
// All tolerance arithmetic is exact decimal. The default fraction is 0.20.
//
// summary.go aggregates an evaluated batch: pass/fail counts before and after
// adjustment, descriptive statistics, and failures per risk level.
package impact
