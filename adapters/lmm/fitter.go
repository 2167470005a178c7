// Package lmm fits linear mixed models by restricted maximum likelihood.
// The variance ratios are profiled out lme4-style: a penalized
// least-squares solve per candidate, with the deviance minimized by
// derivative-free search. Deterministic given identical data and spec.
package lmm

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	"solodiary/domain/model"
	applog "solodiary/internal"
	"solodiary/internal/design"
)

// singularRatio is the variance ratio below which a component is reported
// as a boundary (singular) estimate.
const singularRatio = 1e-4

// Fitter implements ports.MixedModelPort.
type Fitter struct {
	logger *applog.Logger
}

// NewFitter creates a REML fitter.
func NewFitter(logger *applog.Logger) *Fitter {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	return &Fitter{logger: logger}
}

// Fit estimates the mixed model for spec on table.
func (f *Fitter) Fit(ctx context.Context, spec model.Spec, table *diary.Table) (*model.FitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := design.Build(spec, table)
	if err != nil {
		return nil, core.NewFitError(spec.Formula(), err)
	}
	f.logger.Debug("reml fit %s: n=%d, p=%d, subjects=%d, components=%d",
		spec.Formula(), d.N, d.P, d.NSubjects, d.Components)

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			return evalPLS(d, theta).Deviance
		},
	}
	theta0 := make([]float64, d.Components)

	result, optErr := optimize.Minimize(problem, theta0, nil, &optimize.NelderMead{})
	if result == nil {
		return nil, core.NewFitError(spec.Formula(), optErr)
	}

	final := evalPLS(d, result.X)
	if !final.OK {
		return nil, core.NewFitError(spec.Formula(),
			fmt.Errorf("%w at optimum", core.ErrNonPositiveDef))
	}

	conv := model.Convergence{Converged: true}
	if optErr != nil || result.Status == optimize.Failure {
		conv.Converged = false
		conv.Message = fmt.Sprintf("optimizer status %v", result.Status)
	}
	randomVariances := make(map[string]float64, d.Components)
	for c, name := range d.RandomNames {
		ratio := math.Exp(result.X[c])
		randomVariances[name] = ratio * final.Sigma2E
		if ratio < singularRatio {
			conv.Singular = true
			if conv.Message != "" {
				conv.Message += "; "
			}
			conv.Message += fmt.Sprintf("variance of %s at boundary", name)
		}
	}
	if conv.Singular {
		f.logger.Warn("reml fit %s: singular covariance (%s)", spec.Formula(), conv.Message)
	}

	df := float64(d.N - d.P)
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	tCrit := tDist.Quantile(0.975)

	estimates := make([]model.Estimate, d.P)
	for j := 0; j < d.P; j++ {
		coef := final.Beta[j]
		se := math.Sqrt(final.CovBeta.At(j, j))
		tStat := coef / se
		estimates[j] = model.Estimate{
			Name:   d.TermNames[j],
			Coef:   coef,
			SE:     se,
			Lower:  coef - tCrit*se,
			Upper:  coef + tCrit*se,
			PValue: 2 * tDist.Survival(math.Abs(tStat)),
		}
	}

	return &model.FitResult{
		Formula:          spec.Formula(),
		Method:           model.MethodREML,
		Estimates:        estimates,
		RandomVariances:  randomVariances,
		ResidualVariance: final.Sigma2E,
		NObs:             d.N,
		NSubjects:        d.NSubjects,
		ResidualDF:       df,
		Convergence:      conv,
		FittedAt:         time.Now().UTC(),
	}, nil
}
