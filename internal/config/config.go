package config

import (
	"os"
	"strconv"

	"solodiary/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig
	Cache    CacheConfig
	Sampling SamplingConfig
	Output   OutputConfig
}

// DataConfig locates the two survey tables. Paths point at local files;
// URLs are used to fetch them to those paths when the files are absent.
type DataConfig struct {
	DiaryFile    string
	BaselineFile string
	DiaryURL     string
	BaselineURL  string
}

// CacheConfig holds the on-disk fit cache settings
type CacheConfig struct {
	Dir string
}

// SamplingConfig holds MCMC settings for the Bayesian fits
type SamplingConfig struct {
	Seed       int64
	Chains     int
	Iterations int
	Warmup     int
	MaxWorkers int
}

// OutputConfig holds report artifact destinations
type OutputConfig struct {
	Dir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Data: DataConfig{
			DiaryFile:    envOr("DIARY_FILE", "data/diary.csv"),
			BaselineFile: envOr("BASELINE_FILE", "data/baseline.csv"),
			DiaryURL:     os.Getenv("DIARY_URL"),
			BaselineURL:  os.Getenv("BASELINE_URL"),
		},
		Cache: CacheConfig{
			Dir: envOr("FIT_CACHE_DIR", ".fitcache"),
		},
		Sampling: SamplingConfig{
			Seed:       envInt64("MCMC_SEED", 20210321),
			Chains:     envInt("MCMC_CHAINS", 4),
			Iterations: envInt("MCMC_ITERATIONS", 4000),
			Warmup:     envInt("MCMC_WARMUP", 1000),
			MaxWorkers: envInt("MAX_WORKERS", 4),
		},
		Output: OutputConfig{
			Dir: envOr("OUTPUT_DIR", "output"),
		},
	}

	if err := validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validate(c *Config) error {
	if c.Data.DiaryFile == "" {
		return errors.ConfigInvalid("DIARY_FILE must not be empty")
	}
	if c.Data.BaselineFile == "" {
		return errors.ConfigInvalid("BASELINE_FILE must not be empty")
	}
	if c.Sampling.Chains < 1 {
		return errors.ConfigInvalid("MCMC_CHAINS must be at least 1")
	}
	if c.Sampling.Warmup >= c.Sampling.Iterations {
		return errors.ConfigInvalid("MCMC_WARMUP must be below MCMC_ITERATIONS")
	}
	if c.Sampling.MaxWorkers < 1 {
		return errors.ConfigInvalid("MAX_WORKERS must be at least 1")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
