package ports

import (
	"context"

	"solodiary/domain/core"
	"solodiary/domain/model"
)

// FitCachePort is the on-disk memoization store for fit results, keyed by
// spec key + data fingerprint. No eviction; entries live for the life of a
// report build and the directory is safe to delete to force recomputation.
// Must tolerate concurrent readers; at most one writer per key is assumed.
type FitCachePort interface {
	// Get returns the cached result for key, or core.ErrNotCached.
	Get(ctx context.Context, key core.Hash) (*model.FitResult, error)

	// Put stores a result under key.
	Put(ctx context.Context, key core.Hash, result *model.FitResult) error

	// Exists reports whether a cached result is present without decoding it.
	Exists(ctx context.Context, key core.Hash) (bool, error)
}
