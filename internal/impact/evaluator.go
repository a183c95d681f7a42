package impact

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/calibrationiq/calibrationiq/internal/deviation"
)

// ResultStatus distinguishes a batch with nothing to evaluate from one that
// produced rows.
type ResultStatus string

const (
	ResultEmpty     ResultStatus = "empty"
	ResultEvaluated ResultStatus = "evaluated"
)

// Result is the outcome of one Evaluate call.
type Result struct {
	// Status is ResultEmpty when no row could be evaluated.
	Status ResultStatus

	// Rows holds one enriched row per valid input row, in input order.
	// Never nil.
	Rows []EnrichedRecord

	// Skipped lists rows left out of the evaluation, in input order.
	Skipped []*RowValidationError
}

// Empty reports whether the batch produced no evaluated rows.
func (r Result) Empty() bool { return r.Status == ResultEmpty }

// Failures returns the rows that fail after adjustment.
func (r Result) Failures() []EnrichedRecord { return SelectFailures(r.Rows) }

// Policy controls how the Evaluator applies the allowance rule.
type Policy struct {
	// AllowanceFraction is the share of each half-band added for
	// allowance-eligible features. Must lie in [0, 1].
	AllowanceFraction decimal.Decimal

	// Workers bounds the number of goroutines evaluating rows.
	// Zero or negative means runtime.GOMAXPROCS(0).
	Workers int
}

// DefaultPolicy returns the standard 20% allowance with one worker per CPU.
func DefaultPolicy() Policy {
	return Policy{AllowanceFraction: DefaultAllowanceFraction}
}

// Evaluator re-evaluates measurement batches against a deviation.
// It holds no per-batch state and is safe for concurrent use.
type Evaluator struct {
	fraction decimal.Decimal
	workers  int
}

// NewEvaluator returns an Evaluator for p.
func NewEvaluator(p Policy) (*Evaluator, error) {
	if p.AllowanceFraction.IsNegative() || p.AllowanceFraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("impact: allowance fraction %s outside [0, 1]", p.AllowanceFraction)
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Evaluator{fraction: p.AllowanceFraction, workers: workers}, nil
}

// Evaluate adjusts every row by dev and assigns a final status.
//
// Rows that fail validation are skipped and reported in Result.Skipped; the
// rest of the batch is still evaluated. Rows are processed in parallel and
// written back by index, so output order follows input order.
func (e *Evaluator) Evaluate(dev deviation.Deviation, rows []MeasurementRecord) Result {
	out := Result{Status: ResultEmpty, Rows: []EnrichedRecord{}}
	if len(rows) == 0 {
		return out
	}

	enriched := make([]EnrichedRecord, len(rows))
	invalid := make([]*RowValidationError, len(rows))

	workers := e.workers
	if workers > len(rows) {
		workers = len(rows)
	}
	chunk := (len(rows) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if verr := validateRow(rows[i]); verr != nil {
					verr.Index = i
					invalid[i] = verr
					continue
				}
				enriched[i] = enrich(dev, rows[i], e.fraction)
			}
		}(start, end)
	}
	wg.Wait()

	for i := range rows {
		if invalid[i] != nil {
			slog.Debug("impact: row skipped",
				"row", i,
				"key", invalid[i].Key.Label(),
				"field", invalid[i].Field,
				"reason", invalid[i].Reason,
			)
			out.Skipped = append(out.Skipped, invalid[i])
			continue
		}
		out.Rows = append(out.Rows, enriched[i])
	}

	if len(out.Rows) > 0 {
		out.Status = ResultEvaluated
	}
	slog.Debug("impact: batch evaluated",
		"deviation", dev.String(),
		"rows", len(out.Rows),
		"skipped", len(out.Skipped),
		"workers", workers,
	)
	return out
}

// SelectFailures returns exactly the rows whose FinalStatus is FAIL.
// An empty input yields an empty, non-nil slice.
func SelectFailures(rows []EnrichedRecord) []EnrichedRecord {
	out := make([]EnrichedRecord, 0)
	for _, r := range rows {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}
