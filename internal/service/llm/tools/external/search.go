// Package external holds clients for third-party APIs that tools call
package external

import "context"

// SearchClient runs a web search for the web_search tool
type SearchClient interface {
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
}

type SearchOptions struct {
	MaxResults int
}

type SearchResponse struct {
	Query   string
	Results []SearchResult
}

// SearchResult is one hit. RawContent and Score are nil when the API omits them.
type SearchResult struct {
	Title      string
	URL        string
	Snippet    string
	RawContent *string
	Score      *float64
}
