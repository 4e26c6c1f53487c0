package streaming

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatstream/internal/config"
)

// defaultImageMimeType is assumed when the part does not record one
const defaultImageMimeType = "image/jpeg"

// HTTPImageFetcher downloads images over HTTP and encodes them as base64 data URLs
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPImageFetcher creates a fetcher with a bounded timeout and body size
func NewHTTPImageFetcher(timeout time.Duration) *HTTPImageFetcher {
	return &HTTPImageFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: config.MaxUploadBytes,
	}
}

// FetchDataURL implements ImageFetcher
func (f *HTTPImageFetcher) FetchDataURL(ctx context.Context, url, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}

	if mimeType == "" {
		mimeType = defaultImageMimeType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
