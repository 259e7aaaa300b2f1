package adapter

import "context"

// Page is the readable content extracted from a fetched URL.
type Page struct {
	URL        string
	Title      string
	Paragraphs []string
}

// WebFetcher performs web lookups for the enrichment stage.
type WebFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
