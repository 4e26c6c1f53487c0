package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewTavilyClient_RequiresKey(t *testing.T) {
	if _, err := NewTavilyClient(""); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestTavilyClient_Search(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"q","results":[
			{"title":"A","url":"https://a","content":"alpha","score":0.5},
			{"title":"B","url":"https://b","content":"beta","raw_content":"full beta"}
		]}`))
	}))
	defer server.Close()

	client, err := NewTavilyClient("tvly-key", WithEndpoint(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Search(context.Background(), "q", SearchOptions{MaxResults: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotBody["api_key"] != "tvly-key" || gotBody["query"] != "q" || gotBody["max_results"] != float64(5) {
		t.Errorf("unexpected payload: %v", gotBody)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results", len(resp.Results))
	}
	if resp.Results[0].Score == nil || *resp.Results[0].Score != 0.5 {
		t.Errorf("score = %v", resp.Results[0].Score)
	}
	if resp.Results[1].Score != nil {
		t.Error("missing score should stay nil")
	}
	if resp.Results[1].RawContent == nil || *resp.Results[1].RawContent != "full beta" {
		t.Errorf("raw content = %v", resp.Results[1].RawContent)
	}
}

func TestTavilyClient_HTTPError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "structured detail", body: `{"detail":{"error":"Unauthorized: missing or invalid API key."}}`, wantMsg: "search API returned 401: Unauthorized: missing or invalid API key."},
		{name: "plain text", body: "bad key", wantMsg: "search API returned 401: bad key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewTavilyClient("k", WithEndpoint(server.URL), WithHTTPClient(&http.Client{Timeout: time.Second}))
			_, err := client.Search(context.Background(), "q", SearchOptions{})
			if err == nil || err.Error() != tt.wantMsg {
				t.Fatalf("error = %v, want %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTavilyClient_ClampsMaxResults(t *testing.T) {
	var got tavilyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client, _ := NewTavilyClient("k", WithEndpoint(server.URL))
	if _, err := client.Search(context.Background(), "q", SearchOptions{MaxResults: 50}); err != nil {
		t.Fatal(err)
	}
	if got.MaxResults != tavilyMaxResults {
		t.Errorf("max_results = %d, want %d", got.MaxResults, tavilyMaxResults)
	}
}
