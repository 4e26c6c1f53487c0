package llm

import "testing"

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		in       string
		wantMime string
		wantData string
		wantOK   bool
	}{
		{"data:image/png;base64,AAAA", "image/png", "AAAA", true},
		{"data:;base64,AAAA", "", "AAAA", true},
		{"data:text/plain,hello", "", "", false},
		{"https://example.com/a.png", "", "", false},
	}
	for _, tt := range tests {
		mime, data, ok := ParseDataURL(tt.in)
		if mime != tt.wantMime || data != tt.wantData || ok != tt.wantOK {
			t.Errorf("ParseDataURL(%q) = %q, %q, %v", tt.in, mime, data, ok)
		}
	}
}

func TestResultText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"plain", "plain"},
		{map[string]any{"ok": true}, `{"ok":true}`},
		{[]int{1, 2}, "[1,2]"},
	}
	for _, tt := range tests {
		if got := ResultText(tt.in); got != tt.want {
			t.Errorf("ResultText(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
