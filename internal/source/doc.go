// Package source reads the two inputs of an impact analysis from disk.
//
// Calibration readings are small YAML or JSON documents describing one
// as-found check of a tool. Numbers are taken from the literal text of the
// document so that values such as 0.9985 never pass through float64.
//
// Measurement histories are CSV files with one row per measured dimension.
// Columns are matched by header name, case-insensitively, and may appear in
// any order. A missing column fails the whole file. A row whose numeric cell
// cannot be parsed is left out and reported as an *impact.RowValidationError
// carrying its source line; the remaining rows are still returned. An empty
// numeric cell is passed through as a missing value so the evaluator reports
// it the same way for every source.
package source
