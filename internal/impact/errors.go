package impact

import "fmt"

// RowValidationError describes a measurement row that breaks a structural
// invariant and was left out of the evaluation.
type RowValidationError struct {
	// Index is the row's 0-based position in its batch (the slice passed to
	// Evaluate, or the data rows of a source file), or -1 for a single row.
	Index int

	// Line is the 1-based line in the measurement source, or 0 if unknown.
	Line int

	Key    Key
	Field  string
	Reason string

	// Err is the underlying cause, if any (e.g. a wrapped ErrInvalidInput).
	Err error
}

func (e *RowValidationError) Error() string {
	where := fmt.Sprintf("row %d", e.Index)
	if e.Line > 0 {
		where = fmt.Sprintf("line %d", e.Line)
	}
	msg := fmt.Sprintf("impact: %s (%s): ", where, e.Key.Label())
	if e.Field != "" {
		msg += e.Field + ": "
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RowValidationError) Unwrap() error { return e.Err }
