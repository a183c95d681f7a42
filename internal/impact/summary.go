package impact

import (
	"math"
	"sort"
)

// Stats describes the distribution of one column of an evaluated batch.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"` // sample standard deviation; 0 below two values
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary aggregates an evaluated batch for disposition review.
type Summary struct {
	Total          int `json:"total"`
	OriginalPasses int `json:"original_passes"`
	AdjustedPasses int `json:"adjusted_passes"`
	Failures       int `json:"failures"`
	NewFailures    int `json:"new_failures"`
	Recovered      int `json:"recovered"`

	Measured Stats `json:"measured"`
	Adjusted Stats `json:"adjusted"`

	// MeanShift is Adjusted.Mean - Measured.Mean.
	MeanShift float64 `json:"mean_shift"`

	// FailuresByRisk counts failing rows per risk level.
	FailuresByRisk map[RiskLevel]int `json:"failures_by_risk"`
}

// Summarize computes counts and statistics over rows. Statistics are
// descriptive only and use float64; pass/fail decisions come from the rows.
func Summarize(rows []EnrichedRecord) Summary {
	s := Summary{
		Total:          len(rows),
		FailuresByRisk: make(map[RiskLevel]int),
	}
	if len(rows) == 0 {
		return s
	}

	measured := make([]float64, 0, len(rows))
	adjusted := make([]float64, 0, len(rows))
	for _, r := range rows {
		measured = append(measured, r.MeasuredValue.InexactFloat64())
		adjusted = append(adjusted, r.AdjustedValue.InexactFloat64())

		if r.OriginalStatus == StatusPass {
			s.OriginalPasses++
		}
		if r.FinalStatus == StatusPass {
			s.AdjustedPasses++
		} else {
			s.Failures++
			s.FailuresByRisk[r.Risk]++
		}
		switch r.Change {
		case NewFailure:
			s.NewFailures++
		case Recovered:
			s.Recovered++
		}
	}

	s.Measured = statsOf(measured)
	s.Adjusted = statsOf(adjusted)
	s.MeanShift = s.Adjusted.Mean - s.Measured.Mean
	return s
}

func statsOf(values []float64) Stats {
	n := len(values)
	if n == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var stddev float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		stddev = math.Sqrt(sq / float64(n-1))
	}

	return Stats{
		Mean:   mean,
		Median: median,
		StdDev: stddev,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}
