package ports

import (
	"context"

	"solodiary/domain/diary"
)

// DatasetLoaderPort produces the joined observation table from the two
// survey sources. Implementations may fetch remote files into a local
// cache first; fetching is idempotent.
type DatasetLoaderPort interface {
	// Load reads, validates and joins the diary and baseline tables.
	// Fails with core.ErrDataUnavailable when a source cannot be read
	// and core.ErrSchemaMissing when a required column is absent.
	Load(ctx context.Context) (*diary.Table, error)
}
