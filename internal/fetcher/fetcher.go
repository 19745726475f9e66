// Package fetcher downloads remote pages and reads the tabular files the
// store and roster layers are built on.
package fetcher

import (
	"context"
	"io"
)

// Downloader fetches a single remote resource.
type Downloader interface {
	// Download issues one GET for the URL and returns the response body.
	// Any non-200 status is an error. Implementations must not retry.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
