// Package cache persists fit results on disk, keyed by model spec plus
// data fingerprint. No eviction: entries live for the life of a report
// build and the directory is safe to delete to force recomputation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"solodiary/domain/core"
	"solodiary/domain/model"
	applog "solodiary/internal"
)

// FitStore implements ports.FitCachePort on the local filesystem. Writes
// go to a temp file and rename into place, so concurrent readers never
// observe a partial entry.
type FitStore struct {
	basePath string
	logger   *applog.Logger
}

// NewFitStore creates a fit store rooted at basePath.
func NewFitStore(basePath string, logger *applog.Logger) (*FitStore, error) {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FitStore{basePath: basePath, logger: logger}, nil
}

// Get returns the cached result for key, or core.ErrNotCached.
func (s *FitStore) Get(ctx context.Context, key core.Hash) (*model.FitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.entryPath(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotCached, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var result model.FitResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	s.logger.Debug("cache hit for %s (%s)", result.Formula, result.Method)
	return &result, nil
}

// Put stores a result under key.
func (s *FitStore) Put(ctx context.Context, key core.Hash, result *model.FitResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fit result: %w", err)
	}

	path := s.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Exists reports whether a cached result is present.
func (s *FitStore) Exists(ctx context.Context, key core.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.entryPath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// entryPath fans entries out over two-character prefix directories to keep
// any single directory small.
func (s *FitStore) entryPath(key core.Hash) string {
	k := key.String()
	return filepath.Join(s.basePath, k[:2], k+".json")
}
