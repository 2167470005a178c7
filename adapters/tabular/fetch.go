package tabular

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"solodiary/domain/core"
)

// Fetcher downloads survey files into a local directory. Fetching is
// idempotent: a file already present on disk is never re-downloaded, so
// repeated report builds work offline once the data is cached.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the default HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{client: http.DefaultClient}
}

// Ensure makes sure path exists locally, downloading from url if needed.
// With no url configured, a missing file is a data-unavailable error.
func (f *Fetcher) Ensure(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return core.NewDataUnavailableError(path, fmt.Errorf("file missing and no download URL configured"))
	}
	return f.download(ctx, path, url)
}

func (f *Fetcher) download(ctx context.Context, path, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.NewDataUnavailableError(path, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return core.NewDataUnavailableError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.NewDataUnavailableError(path, fmt.Errorf("GET %s: status %d", url, resp.StatusCode))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return core.NewDataUnavailableError(path, err)
	}

	// Write to a temp file and rename so a partial download never looks
	// like a cached file on the next run.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return core.NewDataUnavailableError(path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return core.NewDataUnavailableError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return core.NewDataUnavailableError(path, err)
	}
	return os.Rename(tmp.Name(), path)
}
