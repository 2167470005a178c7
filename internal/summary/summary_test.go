package summary

import (
	"math"
	"testing"

	"solodiary/domain/model"
)

func unconditionalFit(between, residual float64, nObs, nSubjects int) *model.FitResult {
	return &model.FitResult{
		Formula: "satisfaction ~ 1 + (1 | subject)",
		Method:  model.MethodREML,
		Estimates: []model.Estimate{
			{Name: "(Intercept)", Coef: 3.2, SE: 0.1, Lower: 3.0, Upper: 3.4, PValue: 0.0001},
		},
		RandomVariances:  map[string]float64{"(Intercept)": between},
		ResidualVariance: residual,
		NObs:             nObs,
		NSubjects:        nSubjects,
		Convergence:      model.Convergence{Converged: true},
	}
}

// TestExtract verifies the coefficient table mirrors the fit
func TestExtract(t *testing.T) {
	fit := unconditionalFit(1, 1, 210, 21)
	tbl, err := Extract(fit)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if tbl.Formula != fit.Formula || tbl.Method != fit.Method {
		t.Error("Identity fields not carried over")
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0] != fit.Estimates[0] {
		t.Errorf("Rows differ from estimates: %+v", tbl.Rows)
	}
	if tbl.NObs != 210 || tbl.NSubjects != 21 {
		t.Errorf("Counts not carried over: n=%d subjects=%d", tbl.NObs, tbl.NSubjects)
	}

	// Extracted rows are copies, not views into the fit.
	tbl.Rows[0].Coef = 99
	if fit.Estimates[0].Coef == 99 {
		t.Error("Extract aliases the fit's estimate slice")
	}
}

// TestExtractNil verifies the nil-fit error
func TestExtractNil(t *testing.T) {
	if _, err := Extract(nil); err == nil {
		t.Fatal("Expected an error for a nil fit")
	}
}

// TestICCFromFit verifies the variance partition on equal components
func TestICCFromFit(t *testing.T) {
	icc, err := ICCFromFit(unconditionalFit(1, 1, 210, 21))
	if err != nil {
		t.Fatalf("ICCFromFit failed: %v", err)
	}

	if math.Abs(icc.Value-0.5) > 1e-12 {
		t.Errorf("ICC %f, expected 0.5", icc.Value)
	}
	if icc.Lower < 0 || icc.Upper > 1 {
		t.Errorf("Bounds [%f, %f] outside [0,1]", icc.Lower, icc.Upper)
	}
	if icc.Lower >= icc.Value || icc.Upper <= icc.Value {
		t.Errorf("Bounds [%f, %f] do not bracket the estimate %f", icc.Lower, icc.Upper, icc.Value)
	}
}

// TestICCExtremes verifies boundary behavior of the partition
func TestICCExtremes(t *testing.T) {
	high, err := ICCFromFit(unconditionalFit(99, 1, 210, 21))
	if err != nil {
		t.Fatalf("ICCFromFit failed: %v", err)
	}
	if high.Value < 0.98 {
		t.Errorf("Dominant between variance should give ICC near 1, got %f", high.Value)
	}

	low, err := ICCFromFit(unconditionalFit(0.0001, 1, 210, 21))
	if err != nil {
		t.Fatalf("ICCFromFit failed: %v", err)
	}
	if low.Value > 0.01 {
		t.Errorf("Negligible between variance should give ICC near 0, got %f", low.Value)
	}
	if low.Lower < 0 {
		t.Errorf("Lower bound %f below zero", low.Lower)
	}
}

// TestICCMissingIntercept verifies the error for a fit without a random
// intercept variance
func TestICCMissingIntercept(t *testing.T) {
	fit := unconditionalFit(1, 1, 210, 21)
	fit.RandomVariances = map[string]float64{}
	if _, err := ICCFromFit(fit); err == nil {
		t.Fatal("Expected an error without a random intercept variance")
	}
}

// TestICCSmallSample verifies degenerate designs fall back to the unit
// interval instead of failing
func TestICCSmallSample(t *testing.T) {
	icc, err := ICCFromFit(unconditionalFit(1, 1, 5, 5))
	if err != nil {
		t.Fatalf("ICCFromFit failed: %v", err)
	}
	if icc.Lower != 0 || icc.Upper != 1 {
		t.Errorf("Expected [0,1] fallback bounds, got [%f, %f]", icc.Lower, icc.Upper)
	}
}
