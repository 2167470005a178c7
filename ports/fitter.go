package ports

import (
	"context"

	"solodiary/domain/diary"
	"solodiary/domain/model"
)

// MixedModelPort fits a linear mixed model by restricted maximum
// likelihood. Deterministic: identical data and spec produce identical
// point estimates up to solver tolerance.
type MixedModelPort interface {
	Fit(ctx context.Context, spec model.Spec, table *diary.Table) (*model.FitResult, error)
}

// BayesianPort fits the same hierarchical model by MCMC and retains the
// pooled posterior draws for prediction. Deterministic given a fixed seed.
// The call blocks until all chains complete; chain parallelism is internal.
type BayesianPort interface {
	Fit(ctx context.Context, spec model.Spec, table *diary.Table) (*model.FitResult, error)
}
