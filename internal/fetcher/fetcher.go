// Package fetcher retrieves USPVDB dataset files: HTTP downloads with
// revision tracking, and archive unpacking.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher downloads remote dataset files.
type Fetcher interface {
	// Fetch downloads url into dir, naming the file after the last path segment.
	Fetch(ctx context.Context, url, dir string) (*Download, error)

	// Revision returns the ETag the server reports for url, or "" when it sends none.
	Revision(ctx context.Context, url string) (string, error)
}

// Download is a dataset file saved to local disk.
type Download struct {
	Path  string
	Bytes int64
	ETag  string
}

// StatusError reports a non-2xx response from a dataset host.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: %s %s: status %d", e.Method, e.URL, e.StatusCode)
}
