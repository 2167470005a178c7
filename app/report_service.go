package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	"solodiary/domain/model"
	applog "solodiary/internal"
	"solodiary/internal/features"
	"solodiary/internal/predict"
	"solodiary/internal/summary"
	"solodiary/ports"
)

// OutcomeSection collects every artifact of one outcome: the MAR check,
// the variance partition, the three research-question tables and the
// predictive curves. Failed fits leave their slot nil and are recorded in
// the report's failure list.
type OutcomeSection struct {
	Outcome       model.Outcome
	MARCheck      *summary.Table
	Unconditional *summary.Table
	ICC           *summary.ICC
	RQ1           *summary.Table
	RQ3Choice     *summary.Table
	RQ3Motivation *summary.Table
	Curves        map[model.Variant][]predict.Curve
}

// Report is the complete output of one build.
type Report struct {
	RunID           core.ReportRunID
	GeneratedAt     time.Time
	Fingerprint     core.DataFingerprint
	NObs            int
	NSubjects       int
	Sections        []OutcomeSection
	SolitudeTimeICC *summary.ICC
	Failures        map[string]string // "outcome/variant" -> reason
}

// ReportService orchestrates a full report build: load, feature
// derivation, per-outcome fitting, summaries and predictions. Outcomes
// are independent and fit in parallel under a bounded semaphore; one
// outcome's fit error never aborts the others.
type ReportService struct {
	loader     ports.DatasetLoaderPort
	fits       *FitService
	builder    *features.Builder
	maxWorkers int64
	logger     *applog.Logger
}

// NewReportService creates a report service.
func NewReportService(loader ports.DatasetLoaderPort, fits *FitService, maxWorkers int, logger *applog.Logger) *ReportService {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ReportService{
		loader:     loader,
		fits:       fits,
		builder:    features.NewBuilder(logger),
		maxWorkers: int64(maxWorkers),
		logger:     logger,
	}
}

// Build runs the full pipeline. Data and schema errors abort before any
// fitting; fit errors are per-outcome and surface in Report.Failures.
func (s *ReportService) Build(ctx context.Context) (*Report, error) {
	table, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.builder.Build(table); err != nil {
		return nil, err
	}
	fingerprint := table.Fingerprint()
	s.logger.Info("feature table ready, fingerprint %.12s", fingerprint.String())

	report := &Report{
		RunID:       core.NewReportRunID(),
		GeneratedAt: time.Now().UTC(),
		Fingerprint: fingerprint,
		NObs:        table.NumRows(),
		NSubjects:   len(table.SubjectList()),
		Sections:    make([]OutcomeSection, len(model.Outcomes)),
		Failures:    make(map[string]string),
	}

	var mu sync.Mutex
	fail := func(outcome model.Outcome, variant model.Variant, err error) {
		mu.Lock()
		defer mu.Unlock()
		key := fmt.Sprintf("%s/%s", outcome, variant)
		report.Failures[key] = err.Error()
		s.logger.Error("fit %s failed: %v", key, err)
	}

	sem := semaphore.NewWeighted(s.maxWorkers)
	var wg sync.WaitGroup
	for i, outcome := range model.Outcomes {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(i int, outcome model.Outcome) {
			defer wg.Done()
			defer sem.Release(1)
			report.Sections[i] = s.buildSection(ctx, outcome, table, fingerprint, fail)
		}(i, outcome)
	}
	wg.Wait()

	// Variance partition of solitude time itself.
	if icc, err := s.unconditionalICC(ctx, model.OutcomeSolitudeTime, table, fingerprint); err != nil {
		fail(model.OutcomeSolitudeTime, model.VariantUnconditional, err)
	} else {
		report.SolitudeTimeICC = icc
	}

	s.logger.Info("report build %s complete: %d outcomes, %d failures",
		report.RunID, len(report.Sections), len(report.Failures))
	return report, nil
}

type failFunc func(model.Outcome, model.Variant, error)

// buildSection fits every variant for one outcome. Each variant fails
// independently so a singular RQ3 model still leaves RQ1 in the report.
func (s *ReportService) buildSection(ctx context.Context, outcome model.Outcome, table *diary.Table, fingerprint core.DataFingerprint, fail failFunc) OutcomeSection {
	section := OutcomeSection{
		Outcome: outcome,
		Curves:  make(map[model.Variant][]predict.Curve),
	}

	if tbl, err := s.remlTable(ctx, outcome, model.VariantMARCheck, table, fingerprint); err != nil {
		fail(outcome, model.VariantMARCheck, err)
	} else {
		section.MARCheck = tbl
	}

	if tbl, fit, err := s.remlTableWithFit(ctx, outcome, model.VariantUnconditional, table, fingerprint); err != nil {
		fail(outcome, model.VariantUnconditional, err)
	} else {
		section.Unconditional = tbl
		if icc, err := summary.ICCFromFit(fit); err != nil {
			fail(outcome, model.VariantUnconditional, err)
		} else {
			section.ICC = &icc
		}
	}

	if tbl, err := s.remlTable(ctx, outcome, model.VariantRQ1, table, fingerprint); err != nil {
		fail(outcome, model.VariantRQ1, err)
	} else {
		section.RQ1 = tbl
		if curves, err := s.curves(ctx, outcome, model.VariantRQ1, table, fingerprint, nil); err != nil {
			fail(outcome, model.VariantRQ1, err)
		} else {
			section.Curves[model.VariantRQ1] = curves
		}
	}

	choiceW := diary.Within(diary.ColChoice)
	if tbl, err := s.remlTable(ctx, outcome, model.VariantRQ3Choice, table, fingerprint); err != nil {
		fail(outcome, model.VariantRQ3Choice, err)
	} else {
		section.RQ3Choice = tbl
		if curves, err := s.curves(ctx, outcome, model.VariantRQ3Choice, table, fingerprint, &choiceW); err != nil {
			fail(outcome, model.VariantRQ3Choice, err)
		} else {
			section.Curves[model.VariantRQ3Choice] = curves
		}
	}

	motivation := diary.ColMotivation
	if tbl, err := s.remlTable(ctx, outcome, model.VariantRQ3Motivation, table, fingerprint); err != nil {
		fail(outcome, model.VariantRQ3Motivation, err)
	} else {
		section.RQ3Motivation = tbl
		if curves, err := s.curves(ctx, outcome, model.VariantRQ3Motivation, table, fingerprint, &motivation); err != nil {
			fail(outcome, model.VariantRQ3Motivation, err)
		} else {
			section.Curves[model.VariantRQ3Motivation] = curves
		}
	}

	return section
}

func (s *ReportService) remlTable(ctx context.Context, outcome model.Outcome, variant model.Variant, table *diary.Table, fingerprint core.DataFingerprint) (*summary.Table, error) {
	tbl, _, err := s.remlTableWithFit(ctx, outcome, variant, table, fingerprint)
	return tbl, err
}

func (s *ReportService) remlTableWithFit(ctx context.Context, outcome model.Outcome, variant model.Variant, table *diary.Table, fingerprint core.DataFingerprint) (*summary.Table, *model.FitResult, error) {
	spec, err := model.Build(outcome, variant)
	if err != nil {
		return nil, nil, err
	}
	fit, err := s.fits.Fit(ctx, spec, model.MethodREML, table, fingerprint)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := summary.Extract(fit)
	if err != nil {
		return nil, nil, err
	}
	return tbl, fit, nil
}

func (s *ReportService) unconditionalICC(ctx context.Context, outcome model.Outcome, table *diary.Table, fingerprint core.DataFingerprint) (*summary.ICC, error) {
	_, fit, err := s.remlTableWithFit(ctx, outcome, model.VariantUnconditional, table, fingerprint)
	if err != nil {
		return nil, err
	}
	icc, err := summary.ICCFromFit(fit)
	if err != nil {
		return nil, err
	}
	return &icc, nil
}

// curves fits the Bayesian model and evaluates predictive curves. Without
// a moderator one curve is produced; with one, curves at -1 SD and +1 SD.
func (s *ReportService) curves(ctx context.Context, outcome model.Outcome, variant model.Variant, table *diary.Table, fingerprint core.DataFingerprint, moderator *core.VariableKey) ([]predict.Curve, error) {
	spec, err := model.Build(outcome, variant)
	if err != nil {
		return nil, err
	}
	fit, err := s.fits.Fit(ctx, spec, model.MethodGibbs, table, fingerprint)
	if err != nil {
		return nil, err
	}

	var grids []predict.Grid
	if moderator == nil {
		grid, err := predict.BuildGrid(table, "", 0, "population")
		if err != nil {
			return nil, err
		}
		grids = append(grids, grid)
	} else {
		low, high, err := predict.ModeratorLevels(table, *moderator)
		if err != nil {
			return nil, err
		}
		gridLow, err := predict.BuildGrid(table, *moderator, low, fmt.Sprintf("%s -1 SD", *moderator))
		if err != nil {
			return nil, err
		}
		gridHigh, err := predict.BuildGrid(table, *moderator, high, fmt.Sprintf("%s +1 SD", *moderator))
		if err != nil {
			return nil, err
		}
		grids = append(grids, gridLow, gridHigh)
	}

	curves := make([]predict.Curve, 0, len(grids))
	for _, grid := range grids {
		curve, err := predict.Generate(spec, fit, grid)
		if err != nil {
			return nil, err
		}
		curves = append(curves, curve)
	}
	return curves, nil
}
