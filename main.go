package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"solodiary/adapters/cache"
	"solodiary/adapters/lmm"
	"solodiary/adapters/mcmc"
	"solodiary/adapters/tabular"
	"solodiary/app"
	applog "solodiary/internal"
	"solodiary/internal/config"
	"solodiary/internal/export"
)

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	logger := applog.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration: %v", err)
		os.Exit(1)
	}

	fitCache, err := cache.NewFitStore(cfg.Cache.Dir, logger)
	if err != nil {
		logger.Error("fit cache: %v", err)
		os.Exit(1)
	}

	loader := tabular.NewLoader(tabular.LoaderConfig{
		DiaryFile:    cfg.Data.DiaryFile,
		BaselineFile: cfg.Data.BaselineFile,
		DiaryURL:     cfg.Data.DiaryURL,
		BaselineURL:  cfg.Data.BaselineURL,
	}, logger)

	fits := app.NewFitService(
		fitCache,
		lmm.NewFitter(logger),
		mcmc.NewFitter(mcmc.Config{
			Seed:       cfg.Sampling.Seed,
			Chains:     cfg.Sampling.Chains,
			Iterations: cfg.Sampling.Iterations,
			Warmup:     cfg.Sampling.Warmup,
			MaxWorkers: cfg.Sampling.MaxWorkers,
		}, logger),
		logger,
	)

	service := app.NewReportService(loader, fits, cfg.Sampling.MaxWorkers, logger)

	report, err := service.Build(context.Background())
	if err != nil {
		logger.Error("report build: %v", err)
		os.Exit(1)
	}

	exporter := export.NewExporter(cfg.Output.Dir, logger)
	if err := exporter.WriteAll(report); err != nil {
		logger.Error("export: %v", err)
		os.Exit(1)
	}

	if len(report.Failures) > 0 {
		logger.Warn("%d model fits failed; see the report's failure section", len(report.Failures))
	}
	logger.Info("done: run %s", report.RunID)
}
