// Package fetcher retrieves official pages and converts them to plain text.
package fetcher

import (
	"context"
)

// PageFetcher defines the interface for retrieving a page's readable text.
type PageFetcher interface {
	// Fetch performs a single request for url and returns the page text.
	// Any transport failure or non-2xx status is returned as an error.
	Fetch(ctx context.Context, url string) (string, error)
}
