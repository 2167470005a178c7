package mcmc

import (
	"context"
	"math"
	"testing"

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

func testConfig() Config {
	return Config{
		Seed:       20210321,
		Chains:     2,
		Iterations: 400,
		Warmup:     200,
		MaxWorkers: 2,
	}
}

// TestGibbsRecoversDaySlope checks the posterior mean against the
// generating slope
func TestGibbsRecoversDaySlope(t *testing.T) {
	cfg := testkit.DefaultDiaryConfig()
	cfg.DaySlope = 0.5
	cfg.NoiseSD = 0.2
	table := builtTable(t, cfg)

	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantMARCheck)
	fit, err := NewFitter(testConfig(), nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	day, ok := fit.Estimate("day")
	if !ok {
		t.Fatal("No estimate for the day term")
	}
	if math.Abs(day.Coef-cfg.DaySlope) > 0.05 {
		t.Errorf("Posterior mean %f, expected near %f", day.Coef, cfg.DaySlope)
	}
	if !day.Bayesian {
		t.Error("Gibbs estimates must be flagged Bayesian")
	}
	if day.Lower >= day.Upper {
		t.Errorf("Degenerate credible interval [%f, %f]", day.Lower, day.Upper)
	}
}

// TestGibbsPosteriorShape verifies pooled draw counts and term ordering
func TestGibbsPosteriorShape(t *testing.T) {
	table := builtTable(t, testkit.DefaultDiaryConfig())
	cfg := testConfig()

	spec := model.MustBuild(model.OutcomeSatisfaction, model.VariantMARCheck)
	fit, err := NewFitter(cfg, nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if fit.Posterior == nil {
		t.Fatal("Gibbs fit must carry a posterior")
	}
	wantDraws := cfg.Chains * (cfg.Iterations - cfg.Warmup)
	if len(fit.Posterior.Draws) != wantDraws {
		t.Errorf("Expected %d pooled draws, got %d", wantDraws, len(fit.Posterior.Draws))
	}
	if len(fit.Posterior.Terms) != 2 || fit.Posterior.Terms[0] != "(Intercept)" {
		t.Errorf("Unexpected posterior terms: %v", fit.Posterior.Terms)
	}
	for i, row := range fit.Posterior.Draws {
		if len(row) != 2 {
			t.Fatalf("Draw %d has %d coefficients, expected 2", i, len(row))
		}
	}
}

// TestGibbsSeedDeterminism verifies the whole fit reproduces from the
// configured seed
func TestGibbsSeedDeterminism(t *testing.T) {
	table := builtTable(t, testkit.DefaultDiaryConfig())
	spec := model.MustBuild(model.OutcomeLonely, model.VariantMARCheck)

	a, err := NewFitter(testConfig(), nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("First fit failed: %v", err)
	}
	b, err := NewFitter(testConfig(), nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Second fit failed: %v", err)
	}

	for i := range a.Posterior.Draws {
		for j := range a.Posterior.Draws[i] {
			if a.Posterior.Draws[i][j] != b.Posterior.Draws[i][j] {
				t.Fatalf("Draw %d term %d differs across identically seeded fits", i, j)
			}
		}
	}

	c, err := NewFitter(Config{Seed: 99, Chains: 2, Iterations: 400, Warmup: 200, MaxWorkers: 2}, nil).
		Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Reseeded fit failed: %v", err)
	}
	if a.Posterior.Draws[0][0] == c.Posterior.Draws[0][0] {
		t.Error("Different seeds produced identical first draws")
	}
}

// TestGibbsAgreesWithGeneratingIntercept sanity-checks the intercept
// posterior against the data-generating process
func TestGibbsAgreesWithGeneratingIntercept(t *testing.T) {
	cfg := testkit.DefaultDiaryConfig()
	cfg.NoiseSD = 0.2
	table := builtTable(t, cfg)

	spec := model.MustBuild(model.OutcomeStress, model.VariantUnconditional)
	fit, err := NewFitter(testConfig(), nil).Fit(context.Background(), spec, table)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	intercept, _ := fit.Estimate("(Intercept)")
	if math.Abs(intercept.Coef-cfg.Intercept) > 0.5 {
		t.Errorf("Posterior intercept %f, expected near %f", intercept.Coef, cfg.Intercept)
	}
}
