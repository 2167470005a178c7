package model

import "time"

// Method identifies the fitting strategy that produced a result.
type Method string

const (
	// MethodREML is the deterministic linear mixed model fit.
	MethodREML Method = "reml"
	// MethodGibbs is the Bayesian hierarchical fit via MCMC.
	MethodGibbs Method = "gibbs"
)

// Convergence records how the optimizer or sampler finished. Singular or
// boundary variance estimates are surfaced, not fatal.
type Convergence struct {
	Converged bool   `json:"converged"`
	Singular  bool   `json:"singular"`
	Message   string `json:"message,omitempty"`
}

// Estimate is one fixed-effect row of a fitted model.
type Estimate struct {
	Name     string  `json:"name"`
	Coef     float64 `json:"coef"`
	SE       float64 `json:"se"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	PValue   float64 `json:"p_value"`
	Bayesian bool    `json:"bayesian,omitempty"`
}

// Posterior holds pooled post-warmup draws of the fixed effects, one row
// per retained draw, columns ordered as Terms.
type Posterior struct {
	Terms      []string    `json:"terms"`
	Draws      [][]float64 `json:"draws"`
	Chains     int         `json:"chains"`
	Iterations int         `json:"iterations"`
	Warmup     int         `json:"warmup"`
	Seed       int64       `json:"seed"`
}

// FitResult is the immutable output of one model fit. Created by a fitter,
// cached for reuse across report sections, never mutated afterwards.
type FitResult struct {
	Formula          string             `json:"formula"`
	Method           Method             `json:"method"`
	Estimates        []Estimate         `json:"estimates"`
	RandomVariances  map[string]float64 `json:"random_variances"`
	ResidualVariance float64            `json:"residual_variance"`
	NObs             int                `json:"n_obs"`
	NSubjects        int                `json:"n_subjects"`
	ResidualDF       float64            `json:"residual_df"`
	Convergence      Convergence        `json:"convergence"`
	Posterior        *Posterior         `json:"posterior,omitempty"`
	FittedAt         time.Time          `json:"fitted_at"`
}

// Estimate looks up a fixed-effect row by name.
func (f *FitResult) Estimate(name string) (Estimate, bool) {
	for _, e := range f.Estimates {
		if e.Name == name {
			return e, true
		}
	}
	return Estimate{}, false
}
