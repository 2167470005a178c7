// Package mcmc fits the hierarchical linear model by Gibbs sampling.
// Chains run in parallel under a bounded semaphore; the pooled post-warmup
// draws back the predictive curves with credible intervals.
package mcmc

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	"solodiary/domain/model"
	applog "solodiary/internal"
	"solodiary/internal/design"
)

// rhatThreshold flags between-chain disagreement worth surfacing.
const rhatThreshold = 1.1

// Config holds sampler settings.
type Config struct {
	Seed       int64
	Chains     int
	Iterations int
	Warmup     int
	MaxWorkers int
}

// Fitter implements ports.BayesianPort.
type Fitter struct {
	config Config
	logger *applog.Logger
}

// NewFitter creates a Gibbs-sampling fitter.
func NewFitter(config Config, logger *applog.Logger) *Fitter {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	if config.Chains < 1 {
		config.Chains = 4
	}
	if config.MaxWorkers < 1 {
		config.MaxWorkers = config.Chains
	}
	return &Fitter{config: config, logger: logger}
}

// Fit runs all chains and pools their draws. The call blocks until every
// chain completes; chain parallelism is invisible to callers.
func (f *Fitter) Fit(ctx context.Context, spec model.Spec, table *diary.Table) (*model.FitResult, error) {
	d, err := design.Build(spec, table)
	if err != nil {
		return nil, core.NewFitError(spec.Formula(), err)
	}
	f.logger.Debug("gibbs fit %s: n=%d, chains=%d, iterations=%d",
		spec.Formula(), d.N, f.config.Chains, f.config.Iterations)

	sem := semaphore.NewWeighted(int64(f.config.MaxWorkers))
	var wg sync.WaitGroup
	perChain := make([]chainDraws, f.config.Chains)
	errs := make([]error, f.config.Chains)

	for chain := 0; chain < f.config.Chains; chain++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(chain int) {
			defer wg.Done()
			defer sem.Release(1)
			// Chain seeds derive from the base seed so the whole fit
			// is reproducible from one configured value.
			perChain[chain], errs[chain] = runChain(
				d, f.config.Iterations, f.config.Warmup,
				uint64(f.config.Seed), uint64(chain+1))
		}(chain)
	}
	wg.Wait()

	for chain, err := range errs {
		if err != nil {
			return nil, core.NewFitError(spec.Formula(),
				fmt.Errorf("chain %d: %w", chain+1, err))
		}
	}

	retained := f.config.Iterations - f.config.Warmup
	pooled := make([][]float64, 0, retained*f.config.Chains)
	for _, c := range perChain {
		pooled = append(pooled, c.Beta...)
	}
	if len(pooled) == 0 {
		return nil, core.NewFitError(spec.Formula(), fmt.Errorf("no retained draws"))
	}

	conv := f.diagnose(spec, perChain, d.P)
	estimates, err := summarizeDraws(d.TermNames, pooled)
	if err != nil {
		return nil, core.NewFitError(spec.Formula(), err)
	}

	return &model.FitResult{
		Formula:   spec.Formula(),
		Method:    model.MethodGibbs,
		Estimates: estimates,
		NObs:      d.N,
		NSubjects: d.NSubjects,
		Convergence: conv,
		Posterior: &model.Posterior{
			Terms:      d.TermNames,
			Draws:      pooled,
			Chains:     f.config.Chains,
			Iterations: f.config.Iterations,
			Warmup:     f.config.Warmup,
			Seed:       f.config.Seed,
		},
		FittedAt: time.Now().UTC(),
	}, nil
}

// diagnose computes a split-free potential scale reduction factor per term
// and flags chains that disagree.
func (f *Fitter) diagnose(spec model.Spec, chains []chainDraws, p int) model.Convergence {
	conv := model.Convergence{Converged: true}
	if len(chains) < 2 {
		return conv
	}
	for j := 0; j < p; j++ {
		rhat := gelmanRubin(chains, j)
		if rhat > rhatThreshold {
			conv.Converged = false
			conv.Message = fmt.Sprintf("R-hat %.3f for term %d exceeds %.2f", rhat, j, rhatThreshold)
			f.logger.Warn("gibbs fit %s: %s", spec.Formula(), conv.Message)
			break
		}
	}
	return conv
}

// gelmanRubin computes the potential scale reduction factor for one
// coefficient across chains.
func gelmanRubin(chains []chainDraws, term int) float64 {
	m := len(chains)
	n := len(chains[0].Beta)
	if n < 2 {
		return 1.0
	}

	means := make([]float64, m)
	vars := make([]float64, m)
	for c, chain := range chains {
		sum := 0.0
		for _, row := range chain.Beta {
			sum += row[term]
		}
		mean := sum / float64(len(chain.Beta))
		ss := 0.0
		for _, row := range chain.Beta {
			d := row[term] - mean
			ss += d * d
		}
		means[c] = mean
		vars[c] = ss / float64(len(chain.Beta)-1)
	}

	grand := 0.0
	for _, mu := range means {
		grand += mu
	}
	grand /= float64(m)

	b := 0.0
	for _, mu := range means {
		b += (mu - grand) * (mu - grand)
	}
	b *= float64(n) / float64(m-1)

	w := 0.0
	for _, v := range vars {
		w += v
	}
	w /= float64(m)
	if w <= 0 {
		return 1.0
	}

	vHat := (float64(n-1)/float64(n))*w + b/float64(n)
	return math.Sqrt(vHat / w)
}

// summarizeDraws reduces pooled draws to posterior point estimates with
// 95% credible bounds and a two-sided posterior sign probability.
func summarizeDraws(terms []string, pooled [][]float64) ([]model.Estimate, error) {
	p := len(terms)
	estimates := make([]model.Estimate, p)
	column := make([]float64, len(pooled))
	for j := 0; j < p; j++ {
		positive := 0
		for i, row := range pooled {
			column[i] = row[j]
			if row[j] > 0 {
				positive++
			}
		}

		mean, err := stats.Mean(column)
		if err != nil {
			return nil, err
		}
		sd, err := stats.StandardDeviationSample(column)
		if err != nil {
			return nil, err
		}
		lower, err := stats.Percentile(column, 2.5)
		if err != nil {
			return nil, err
		}
		upper, err := stats.Percentile(column, 97.5)
		if err != nil {
			return nil, err
		}

		fracPositive := float64(positive) / float64(len(pooled))
		tail := math.Min(fracPositive, 1-fracPositive)
		pValue := math.Max(2*tail, 1.0/float64(len(pooled)))

		estimates[j] = model.Estimate{
			Name:     terms[j],
			Coef:     mean,
			SE:       sd,
			Lower:    lower,
			Upper:    upper,
			PValue:   pValue,
			Bayesian: true,
		}
	}
	return estimates, nil
}
