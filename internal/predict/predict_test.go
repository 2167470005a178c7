package predict

import (
	"math"
	"testing"

	"solodiary/domain/diary"
	"solodiary/domain/model"
	"solodiary/internal/features"
	"solodiary/internal/testkit"
)

func builtTable(t *testing.T) *diary.Table {
	t.Helper()
	table := testkit.GenerateDiary(testkit.DefaultDiaryConfig())
	if _, err := features.NewBuilder(nil).Build(table); err != nil {
		t.Fatalf("Feature build failed: %v", err)
	}
	return table
}

// degeneratePosterior builds a posterior whose draws all equal beta, so
// curve values are exact functions of the coefficients.
func degeneratePosterior(spec model.Spec, beta []float64) *model.FitResult {
	draws := make([][]float64, 5)
	for i := range draws {
		row := make([]float64, len(beta))
		copy(row, beta)
		draws[i] = row
	}
	return &model.FitResult{
		Formula: spec.Formula(),
		Method:  model.MethodGibbs,
		Posterior: &model.Posterior{
			Terms: spec.TermNames(),
			Draws: draws,
		},
	}
}

// TestBuildGridSpansObservedRange verifies grid resolution and bounds
func TestBuildGridSpansObservedRange(t *testing.T) {
	table := builtTable(t)
	grid, err := BuildGrid(table, "", 0, "population")
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	if len(grid.Values) != GridPoints {
		t.Fatalf("Expected %d grid points, got %d", GridPoints, len(grid.Values))
	}

	col := table.MustColumn(diary.Within(diary.ColSolitudeTime))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range col {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if grid.Values[0] != lo || grid.Values[GridPoints-1] != hi {
		t.Errorf("Grid [%f, %f] does not span observed range [%f, %f]",
			grid.Values[0], grid.Values[GridPoints-1], lo, hi)
	}
	for i := 1; i < len(grid.Values); i++ {
		if grid.Values[i] <= grid.Values[i-1] {
			t.Fatalf("Grid not strictly increasing at %d", i)
		}
	}
}

// TestModeratorLevels verifies the -1/+1 SD levels on a known column
func TestModeratorLevels(t *testing.T) {
	table := builtTable(t)
	low, high, err := ModeratorLevels(table, diary.Within(diary.ColChoice))
	if err != nil {
		t.Fatalf("ModeratorLevels failed: %v", err)
	}
	if low >= high {
		t.Errorf("Expected low < high, got %f >= %f", low, high)
	}
	// Within components center on zero, so the levels straddle it.
	if low >= 0 || high <= 0 {
		t.Errorf("Levels [%f, %f] should straddle zero for a within-person moderator", low, high)
	}
}

// TestGenerateQuadraticCurve verifies the curve reproduces the quadratic
// and its curvature follows the sign of the squared term's coefficient
func TestGenerateQuadraticCurve(t *testing.T) {
	table := builtTable(t)
	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantRQ1)

	// Fixed order: timeB, timeBSq, lagW, timeW, timeWSq.
	beta := []float64{3.0, 0, 0, 0, 0.4, -0.1}
	fit := degeneratePosterior(spec, beta)

	grid, err := BuildGrid(table, "", 0, "population")
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}
	curve, err := Generate(spec, fit, grid)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	for i, pt := range curve.Points {
		want := 3.0 + 0.4*pt.X - 0.1*pt.X*pt.X
		if math.Abs(pt.Fit-want) > 1e-9 {
			t.Fatalf("Point %d at x=%f: fit %f, expected %f", i, pt.X, pt.Fit, want)
		}
		// Degenerate posterior collapses the interval onto the fit.
		if math.Abs(pt.Lower-want) > 1e-9 || math.Abs(pt.Upper-want) > 1e-9 {
			t.Fatalf("Point %d: interval [%f, %f] off the degenerate fit", i, pt.Lower, pt.Upper)
		}
	}

	// Negative quadratic coefficient means concave: second differences < 0.
	for i := 2; i < len(curve.Points); i++ {
		d2 := curve.Points[i].Fit - 2*curve.Points[i-1].Fit + curve.Points[i-2].Fit
		if d2 >= 0 {
			t.Fatalf("Second difference %g at %d not negative for a concave curve", d2, i)
		}
	}
}

// TestGenerateModeratorShift verifies the moderator level shifts the curve
// through its main effect and interactions
func TestGenerateModeratorShift(t *testing.T) {
	table := builtTable(t)
	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantRQ3Choice)

	// Fixed order: lagW, timeW, timeWSq, choiceW, timeW:choiceW, timeWSq:choiceW.
	beta := []float64{3.0, 0, 0.4, -0.1, 0.2, 0, 0}
	fit := degeneratePosterior(spec, beta)

	choiceW := diary.Within(diary.ColChoice)
	gridZero, err := BuildGrid(table, choiceW, 0, "choice 0")
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}
	gridHigh, err := BuildGrid(table, choiceW, 1, "choice +1")
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	base, err := Generate(spec, fit, gridZero)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	shifted, err := Generate(spec, fit, gridHigh)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// With zero interaction coefficients the shift is the constant main
	// effect of the moderator.
	for i := range base.Points {
		diff := shifted.Points[i].Fit - base.Points[i].Fit
		if math.Abs(diff-0.2) > 1e-9 {
			t.Fatalf("Point %d: moderator shift %f, expected 0.2", i, diff)
		}
	}
}

// TestGenerateWithoutPosterior verifies the error for a frequentist fit
func TestGenerateWithoutPosterior(t *testing.T) {
	table := builtTable(t)
	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantRQ1)
	grid, err := BuildGrid(table, "", 0, "population")
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	fit := &model.FitResult{Formula: spec.Formula(), Method: model.MethodREML}
	if _, err := Generate(spec, fit, grid); err == nil {
		t.Fatal("Expected an error for a fit without posterior draws")
	}
}
