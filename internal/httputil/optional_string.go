package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString tracks presence and value for JSON PATCH semantics (RFC 7396):
//   - Present=false: field absent (leave unchanged)
//   - Present=true, Value=nil: explicit null
//   - Present=true, Value=&s: field set to s
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only called when the field appears in the document
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// IsNull reports an explicit JSON null
func (o OptionalString) IsNull() bool {
	return o.Present && o.Value == nil
}
