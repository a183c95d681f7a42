package impact

// RiskLevel ranks a failing row for disposition.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// RiskFor maps a criticality to its disposition risk level.
func RiskFor(c Criticality) RiskLevel {
	switch c {
	case Critical:
		return RiskHigh
	case Major:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RecommendedAction is the default disposition for a failing row at level r.
func (r RiskLevel) RecommendedAction() string {
	switch r {
	case RiskHigh:
		return "immediate containment, 100% inspection, engineering review"
	case RiskMedium:
		return "sample inspection, disposition by quality engineer"
	default:
		return "apply tolerance allowance, document and release"
	}
}
