package impact

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/calibrationiq/calibrationiq/internal/deviation"
)

// dec builds a present nullable decimal from a literal.
func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// num parses an exact decimal literal.
func num(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// devOf builds a deviation from a literal.
func devOf(s string) deviation.Deviation { return deviation.FromDecimal(num(s)) }

// row builds a bilateral measurement row with the given identity and values.
func row(dim, measured, nominal, upper, lower string, crit Criticality) MeasurementRecord {
	return MeasurementRecord{
		Key:              Key{JobNumber: "WO-001", SampleSerialNumber: "SN-101", DimensionID: dim},
		FeatureName:      "feature " + dim,
		MeasuredValue:    dec(measured),
		NominalValue:     dec(nominal),
		OriginalUpperTol: dec(upper),
		OriginalLowerTol: dec(lower),
		ToleranceType:    Bilateral,
		Criticality:      crit,
	}
}

// sampleRows mirrors the historical table shipped with the sample data set.
func sampleRows() []MeasurementRecord {
	mk := func(job, sn, dim, feature, m, n, up, lo string, c Criticality) MeasurementRecord {
		return MeasurementRecord{
			Key:              Key{JobNumber: job, SampleSerialNumber: sn, DimensionID: dim},
			FeatureName:      feature,
			MeasuredValue:    dec(m),
			NominalValue:     dec(n),
			OriginalUpperTol: dec(up),
			OriginalLowerTol: dec(lo),
			ToleranceType:    Bilateral,
			Criticality:      c,
		}
	}
	return []MeasurementRecord{
		mk("WO-001", "SN-101", "Char 1", "Hole Diameter", "0.5005", "0.5000", "0.5010", "0.4990", Critical),
		mk("WO-001", "SN-101", "Char 2", "Step Height", "1.2510", "1.2500", "1.2520", "1.2480", Major),
		mk("WO-002", "SN-201", "Char 5", "Outer Diameter", "3.0001", "3.0000", "3.0005", "2.9995", NotSpecified),
		mk("WO-002", "SN-201", "Char 6", "Groove Depth", "0.1008", "0.1000", "0.1010", "0.0990", NotSpecified),
		mk("WO-003", "SN-301", "Char 9", "Slot Width", "0.7511", "0.7500", "0.7510", "0.7490", Minor),
		mk("WO-004", "SN-401", "Char 12", "Pin Diameter", "0.2498", "0.2500", "0.2505", "0.2495", Critical),
		mk("WO-004", "SN-401", "Char 15", "Boss Height", "1.5003", "1.5000", "1.5005", "1.4995", Minor),
	}
}

// mustEvaluator returns an Evaluator for the default policy with n workers.
func mustEvaluator(t *testing.T, workers int) *Evaluator {
	t.Helper()
	p := DefaultPolicy()
	p.Workers = workers
	e, err := NewEvaluator(p)
	if err != nil {
		t.Fatalf("NewEvaluator() unexpected error: %v", err)
	}
	return e
}

// assertDecimal fails the test when got != want exactly.
func assertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(num(want)) {
		t.Errorf("%s = %s, want %s", field, got, want)
	}
}
