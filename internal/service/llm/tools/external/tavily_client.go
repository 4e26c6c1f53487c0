package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const (
	tavilyEndpoint = "https://api.tavily.com/search"
	tavilyTimeout  = 30 * time.Second

	// tavilyMaxResults is the largest max_results the API accepts
	tavilyMaxResults = 20
)

// ErrMissingAPIKey is returned when no Tavily key is configured
var ErrMissingAPIKey = errors.New("TAVILY_API_KEY is not set. Please add it to the environment")

// TavilyClient calls the Tavily search API
type TavilyClient struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// TavilyOption customises a TavilyClient
type TavilyOption func(*TavilyClient)

// WithEndpoint points the client at another URL (tests, proxies)
func WithEndpoint(url string) TavilyOption {
	return func(c *TavilyClient) { c.endpoint = url }
}

// WithHTTPClient replaces the default client with its 30s timeout
func WithHTTPClient(hc *http.Client) TavilyOption {
	return func(c *TavilyClient) { c.http = hc }
}

func NewTavilyClient(apiKey string, opts ...TavilyOption) (*TavilyClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &TavilyClient{
		apiKey:   apiKey,
		endpoint: tavilyEndpoint,
		http:     &http.Client{Timeout: tavilyTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ SearchClient = (*TavilyClient)(nil)

// The key travels in the body; Tavily ignores auth headers on this endpoint
type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title      string   `json:"title"`
		URL        string   `json:"url"`
		Content    string   `json:"content"`
		RawContent *string  `json:"raw_content,omitempty"`
		Score      *float64 `json:"score,omitempty"`
	} `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	maxResults = min(maxResults, tavilyMaxResults)

	payload, err := json.Marshal(tavilyRequest{APIKey: c.apiKey, Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, apiErrorMessage(body))
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &SearchResponse{Query: query, Results: make([]SearchResult, 0, len(decoded.Results))}
	for _, r := range decoded.Results {
		out.Results = append(out.Results, SearchResult{
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Content,
			RawContent: r.RawContent,
			Score:      r.Score,
		})
	}
	return out, nil
}

// apiErrorMessage pulls Tavily's {"detail":{"error":...}} message, else the raw body
func apiErrorMessage(body []byte) string {
	for _, path := range []string{"detail.error", "detail", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String {
			return v.String()
		}
	}
	return string(bytes.TrimSpace(body))
}
