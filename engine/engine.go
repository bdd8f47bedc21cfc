// Package engine fetches product detail pages. The listing traversal
// owns its rendering session directly and never comes through here;
// detail enrichment does, racing a cheap TLS-fingerprinted HTTP fetch
// against a full browser render with staged escalation.
package engine

import (
	"context"
	"time"
)

// Engine is one way to turn a detail-page URL into rendered HTML.
type Engine interface {
	// Name identifies the engine in logs and domain memory
	// ("http", "browser").
	Name() string

	// Fetch retrieves the page for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest describes one detail-page fetch.
type FetchRequest struct {
	URL     string
	Referer string
	Timeout time.Duration
}

// FetchResult is the output of a successful fetch.
type FetchResult struct {
	HTML       string
	Title      string
	FinalURL   string
	EngineName string
}
