package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	models "chatstream/internal/domain/models/chat"
)

func TestRespondError_ProblemDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithExtras(rec, http.StatusTooManyRequests, "Guest message limit reached. Please log in to continue.", map[string]interface{}{"limit": 10})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["detail"] != "Guest message limit reached. Please log in to continue." || body["limit"] != float64(10) {
		t.Errorf("body = %v", body)
	}
	if body["type"] == "about:blank" {
		t.Errorf("429 should have a specific type")
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		empty   bool
	}{
		{name: "valid", body: `{"title":"x"}`},
		{name: "empty", body: ``, wantErr: true, empty: true},
		{name: "malformed", body: `{"title":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest struct {
				Title OptionalString `json:"title"`
			}
			err := ParseJSON(httptest.NewRecorder(), r, &dest)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.empty && !errors.Is(err, ErrEmptyBody) {
				t.Errorf("error = %v, want ErrEmptyBody", err)
			}
			if !tt.wantErr && (!dest.Title.Present || *dest.Title.Value != "x") {
				t.Errorf("title = %+v", dest.Title)
			}
		})
	}
}

func TestOptionalString_Null(t *testing.T) {
	var dest struct {
		Title OptionalString `json:"title"`
		Other OptionalString `json:"other"`
	}
	if err := json.Unmarshal([]byte(`{"title":null}`), &dest); err != nil {
		t.Fatal(err)
	}
	if !dest.Title.IsNull() {
		t.Error("title should be explicit null")
	}
	if dest.Other.Present {
		t.Error("absent field reported present")
	}
}

func TestCallerContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if c := GetCaller(r); c.IsAuthenticated() || c.SessionID != "" {
		t.Errorf("zero caller expected, got %+v", c)
	}
	r = WithCaller(r, models.Caller{UserID: "u1"})
	if GetCaller(r).UserID != "u1" {
		t.Error("caller not carried")
	}
}

func TestProblemDetail_ExtrasCannotOverrideMembers(t *testing.T) {
	data, err := json.Marshal(ProblemDetail{
		Type:   problemType(http.StatusConflict),
		Title:  "Conflict",
		Status: http.StatusConflict,
		Extra:  map[string]any{"status": 200, "resource_id": "c1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	_ = json.Unmarshal(data, &body)
	if body["status"] != float64(409) || body["resource_id"] != "c1" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["detail"]; ok {
		t.Errorf("empty detail should be omitted")
	}
}
