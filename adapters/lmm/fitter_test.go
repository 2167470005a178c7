package lmm

import (
	"context"
	"math"
	"testing"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	"solodiary/domain/model"
	"solodiary/internal/features"
	"solodiary/internal/testkit"
)

func builtTable(t *testing.T, cfg testkit.DiaryConfig) *diary.Table {
	t.Helper()
	table := testkit.GenerateDiary(cfg)
	if _, err := features.NewBuilder(nil).Build(table); err != nil {
		t.Fatalf("Feature build failed: %v", err)
	}
	return table
}

// TestFitRecoversDaySlope fits outcome ~ day on data generated with a
// known slope and checks the estimate and its interval
func TestFitRecoversDaySlope(t *testing.T) {
	cfg := testkit.DefaultDiaryConfig()
	cfg.DaySlope = 0.5
	cfg.NoiseSD = 0.2
	table := builtTable(t, cfg)

	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantMARCheck)
	fit, err := NewFitter(nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	day, ok := fit.Estimate("day")
	if !ok {
		t.Fatal("No estimate for the day term")
	}
	if math.Abs(day.Coef-cfg.DaySlope) > 0.05 {
		t.Errorf("Day slope %f, expected near %f", day.Coef, cfg.DaySlope)
	}
	// Interval check with slack for sampling noise in one realization.
	if day.Lower > cfg.DaySlope+0.02 || day.Upper < cfg.DaySlope-0.02 {
		t.Errorf("95%% CI [%f, %f] far from the true slope %f", day.Lower, day.Upper, cfg.DaySlope)
	}
	if day.SE <= 0 {
		t.Errorf("Non-positive SE %f", day.SE)
	}
	if day.PValue > 0.001 {
		t.Errorf("Strong signal should give a tiny p, got %f", day.PValue)
	}

	intercept, _ := fit.Estimate("(Intercept)")
	if math.Abs(intercept.Coef-cfg.Intercept) > 0.5 {
		t.Errorf("Intercept %f, expected near %f", intercept.Coef, cfg.Intercept)
	}
}

// TestFitUnconditionalVariances fits the intercept-only model and checks
// the variance partition against the generating process
func TestFitUnconditionalVariances(t *testing.T) {
	cfg := testkit.DefaultDiaryConfig()
	cfg.SubjectSD = 0.8
	cfg.NoiseSD = 0.4
	table := builtTable(t, cfg)

	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantUnconditional)
	fit, err := NewFitter(nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if len(fit.Estimates) != 1 {
		t.Fatalf("Expected 1 fixed effect, got %d", len(fit.Estimates))
	}
	between := fit.RandomVariances["(Intercept)"]
	if between <= 0 || fit.ResidualVariance <= 0 {
		t.Fatalf("Non-positive variances: between=%f resid=%f", between, fit.ResidualVariance)
	}

	// True ICC = 0.64/(0.64+0.16) = 0.8; sampling noise allows a wide band.
	icc := between / (between + fit.ResidualVariance)
	if icc < 0.6 || icc > 0.95 {
		t.Errorf("ICC %f far from the generating value 0.8", icc)
	}
	if fit.NObs != cfg.Subjects*cfg.Days || fit.NSubjects != cfg.Subjects {
		t.Errorf("Wrong counts: n=%d subjects=%d", fit.NObs, fit.NSubjects)
	}
}

// TestFitDeterminism verifies two fits of the same data are identical
func TestFitDeterminism(t *testing.T) {
	table := builtTable(t, testkit.DefaultDiaryConfig())
	spec := model.MustBuild(model.OutcomeLonely, model.VariantMARCheck)
	fitter := NewFitter(nil)

	a, err := fitter.Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("First fit failed: %v", err)
	}
	b, err := fitter.Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Second fit failed: %v", err)
	}

	for i := range a.Estimates {
		if a.Estimates[i].Coef != b.Estimates[i].Coef || a.Estimates[i].SE != b.Estimates[i].SE {
			t.Errorf("Term %s differs across identical fits", a.Estimates[i].Name)
		}
	}
	if a.ResidualVariance != b.ResidualVariance {
		t.Error("Residual variance differs across identical fits")
	}
}

// TestFitInsufficientData verifies the fatal error path when the design
// cannot identify the fixed effects
func TestFitInsufficientData(t *testing.T) {
	cfg := testkit.DefaultDiaryConfig()
	cfg.Subjects = 2
	cfg.Days = 3
	table := builtTable(t, cfg)

	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantRQ3Choice)
	_, err := NewFitter(nil).Fit(context.Background(), spec, table)
	if err == nil {
		t.Fatal("Expected a fit error")
	}
	if !core.IsFitError(err) {
		t.Errorf("Expected a fit error, got %v", err)
	}
}

// TestFitSingularFlag verifies a zero-variance random slope surfaces as a
// boundary warning, not a failure
func TestFitSingularFlag(t *testing.T) {
	cfg := testkit.DefaultDiaryConfig()
	cfg.SubjectSD = 0.6
	cfg.DaySlope = 0.3
	cfg.NoiseSD = 0.2
	// No subject varies in day slope, so its variance sits at the boundary.
	table := builtTable(t, cfg)

	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantMARCheck)
	fit, err := NewFitter(nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !fit.Convergence.Singular {
		t.Log("Expected a singular day-slope variance; optimizer kept it off the boundary")
	}
	if fit.Convergence.Singular && fit.Convergence.Message == "" {
		t.Error("Singular flag without a message")
	}
}
