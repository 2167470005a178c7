package app

import (
	"context"
	"fmt"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	"solodiary/domain/model"
	applog "solodiary/internal"
	"solodiary/ports"
)

// FitService memoizes model fits in the on-disk cache. The cache key
// combines the canonical formula, the fitting method and the data
// fingerprint, so silently changed input data never reuses a stale fit.
type FitService struct {
	cache  ports.FitCachePort
	reml   ports.MixedModelPort
	bayes  ports.BayesianPort
	logger *applog.Logger
}

// NewFitService creates a fit service.
func NewFitService(cache ports.FitCachePort, reml ports.MixedModelPort, bayes ports.BayesianPort, logger *applog.Logger) *FitService {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	return &FitService{cache: cache, reml: reml, bayes: bayes, logger: logger}
}

// Fit returns the cached result for (spec, method, fingerprint) or fits
// and stores a fresh one. A cache hit is identical to a fresh fit.
func (s *FitService) Fit(ctx context.Context, spec model.Spec, method model.Method, table *diary.Table, fingerprint core.DataFingerprint) (*model.FitResult, error) {
	key := fitKey(spec, method, fingerprint)

	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !core.IsCacheMiss(err) {
		s.logger.Warn("cache read for %s failed, refitting: %v", spec.Formula(), err)
	}

	var result *model.FitResult
	switch method {
	case model.MethodREML:
		result, err = s.reml.Fit(ctx, spec, table)
	case model.MethodGibbs:
		result, err = s.bayes.Fit(ctx, spec, table)
	default:
		return nil, fmt.Errorf("unknown fit method %q", method)
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, key, result); err != nil {
		// A failed write costs a refit next run, nothing more.
		s.logger.Warn("cache write for %s failed: %v", spec.Formula(), err)
	}
	return result, nil
}

// fitKey builds the composite cache key.
func fitKey(spec model.Spec, method model.Method, fingerprint core.DataFingerprint) core.Hash {
	return core.NewHash([]byte(spec.Key().String() + "|" + string(method) + "|" + fingerprint.String()))
}
