package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseDataURL splits "data:<mime>;base64,<payload>" into its mime type and payload
func ParseDataURL(s string) (mimeType, payload string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", "", false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", "", false
	}
	return mimeType, data, true
}

// ResultText renders a tool result as the string form most vendors expect
func ResultText(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}

// ResultObject wraps a tool result as a JSON object for vendors that require one
func ResultObject(result any) map[string]any {
	if m, ok := result.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": result}
}
