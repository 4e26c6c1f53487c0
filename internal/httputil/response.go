package httputil

import (
	"encoding/json"
	"maps"
	"net/http"
)

// RespondJSON marshals data before writing, so an encoding failure becomes a
// clean 500 rather than a truncated body.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	write(w, status, "application/json", payload)
}

// ProblemDetail is an RFC 7807 error body. Extra members are flattened into
// the top-level object.
type ProblemDetail struct {
	Type   string
	Title  string
	Status int
	Detail string
	Extra  map[string]any
}

func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+4)
	maps.Copy(m, p.Extra)
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	return json.Marshal(m)
}

// RespondError writes a problem+json response with detail as the caller-facing message
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras adds members such as resource_id to the problem body
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]any) {
	payload, err := json.Marshal(ProblemDetail{
		Type:   problemType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	})
	if err != nil {
		write(w, http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("internal server error"))
		return
	}
	write(w, status, "application/problem+json", payload)
}

func write(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

const rfc9110 = "https://www.rfc-editor.org/rfc/rfc9110#section-"

var problemTypes = map[int]string{
	http.StatusBadRequest:            rfc9110 + "15.5.1",
	http.StatusUnauthorized:          rfc9110 + "15.5.2",
	http.StatusForbidden:             rfc9110 + "15.5.4",
	http.StatusNotFound:              rfc9110 + "15.5.5",
	http.StatusConflict:              rfc9110 + "15.5.10",
	http.StatusRequestEntityTooLarge: rfc9110 + "15.5.14",
	http.StatusTooManyRequests:       "https://www.rfc-editor.org/rfc/rfc6585#section-4",
	http.StatusInternalServerError:   rfc9110 + "15.6.1",
	http.StatusServiceUnavailable:    rfc9110 + "15.6.4",
}

// problemType returns the type URI for status, or about:blank
func problemType(status int) string {
	if uri, ok := problemTypes[status]; ok {
		return uri
	}
	return "about:blank"
}
