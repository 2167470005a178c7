// Package testkit provides in-memory fakes and a seeded synthetic-data
// generator for tests. Nothing here touches the filesystem or network.
package testkit

import (
	"context"
	"fmt"
	"sync"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	"solodiary/domain/model"
)

// MemoryFitCache implements ports.FitCachePort with map storage. Safe for
// concurrent use; entries survive for the life of the test.
type MemoryFitCache struct {
	mu      sync.RWMutex
	entries map[core.Hash]*model.FitResult
}

// NewMemoryFitCache creates an empty in-memory fit cache.
func NewMemoryFitCache() *MemoryFitCache {
	return &MemoryFitCache{entries: make(map[core.Hash]*model.FitResult)}
}

// Get returns the cached result for key, or core.ErrNotCached.
func (c *MemoryFitCache) Get(ctx context.Context, key core.Hash) (*model.FitResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotCached, key)
	}
	return result, nil
}

// Put stores a result under key.
func (c *MemoryFitCache) Put(ctx context.Context, key core.Hash, result *model.FitResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

// Exists reports whether a cached result is present.
func (c *MemoryFitCache) Exists(ctx context.Context, key core.Hash) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok, nil
}

// Len returns the number of stored entries.
func (c *MemoryFitCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StaticLoader implements ports.DatasetLoaderPort by returning a prebuilt
// table, bypassing file ingest entirely.
type StaticLoader struct {
	Table *diary.Table
	Err   error
}

// Load returns the configured table or error.
func (l *StaticLoader) Load(ctx context.Context) (*diary.Table, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Table, nil
}
