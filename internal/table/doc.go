// Package table converts evaluated measurement rows into an Apache Arrow
// record so that dataframe tooling can consume the full enriched table.
//
// Rows are tagged with the tool and deviation that produced them, so one
// stream can hold every tool of a run. Numeric columns are float64 for
// convenience. The values that decide PASS/FAIL (adjusted value and expanded
// bands) are also carried as exact decimal strings in the *_exact columns.
package table
