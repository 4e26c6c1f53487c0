package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 10 << 20

// ErrEmptyBody is returned by ParseJSON for a request without a body
var ErrEmptyBody = errors.New("request body is empty")

// ParseJSON decodes JSON from the request body into dest.
// The body is capped at 10MB (w is needed for the 413 response).
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
