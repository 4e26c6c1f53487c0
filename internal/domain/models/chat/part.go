package chat

import (
	"encoding/json"
	"fmt"
)

// Part type discriminators, stored in the "type" field of each JSONB part
const (
	PartTypeText       = "text"
	PartTypeImage      = "image"
	PartTypeToolCall   = "tool-call"
	PartTypeToolResult = "tool-result"
	PartTypeReasoning  = "reasoning"
)

// Part is one ordered fragment of message content.
// Implementations: TextPart, ImagePart, ToolCallPart, ToolResultPart, ReasoningPart.
type Part interface {
	PartType() string
	validate() error
}

// TextPart holds model or user text
type TextPart struct {
	Text string `json:"text"`
}

// ImagePart holds a data URL or a remote URL to be inlined before sending to a provider
type ImagePart struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type,omitempty"`
}

// ToolCallPart records a model's request to run a tool.
// Args is an arbitrary JSON object; each tool validates its own schema.
type ToolCallPart struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResultPart records a tool's output. It normally follows a ToolCallPart
// with the same id, but consumers must tolerate an orphan result.
type ToolResultPart struct {
	ToolCallID string `json:"tool_call_id"`
	Result     any    `json:"result"`
}

// ReasoningPart holds exposed model thinking. A message carries at most one.
type ReasoningPart struct {
	Text string `json:"text"`
}

func (TextPart) PartType() string       { return PartTypeText }
func (ImagePart) PartType() string      { return PartTypeImage }
func (ToolCallPart) PartType() string   { return PartTypeToolCall }
func (ToolResultPart) PartType() string { return PartTypeToolResult }
func (ReasoningPart) PartType() string  { return PartTypeReasoning }

func (p TextPart) validate() error { return nil }

func (p ImagePart) validate() error {
	if p.Image == "" {
		return fmt.Errorf("image part: image is required")
	}
	return nil
}

func (p ToolCallPart) validate() error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("tool-call part: id and name are required")
	}
	return nil
}

func (p ToolResultPart) validate() error {
	if p.ToolCallID == "" {
		return fmt.Errorf("tool-result part: tool_call_id is required")
	}
	return nil
}

func (p ReasoningPart) validate() error { return nil }

// Parts is an ordered part sequence with a discriminated JSON encoding
type Parts []Part

// MarshalJSON writes each part as a flat object with a "type" discriminator
func (ps Parts) MarshalJSON() ([]byte, error) {
	if ps == nil {
		return []byte("null"), nil
	}

	out := make([]json.RawMessage, 0, len(ps))
	for i, p := range ps {
		raw, err := marshalPart(p)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses and validates a part sequence
func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if raws == nil {
		*ps = nil
		return nil
	}

	parts := make(Parts, 0, len(raws))
	for i, raw := range raws {
		p, err := ParsePart(raw)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, p)
	}
	*ps = parts
	return nil
}

// Validate checks every part in the sequence
func (ps Parts) Validate() error {
	for i, p := range ps {
		if p == nil {
			return fmt.Errorf("part %d: nil part", i)
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return nil
}

// ParsePart decodes a single discriminated part
func ParsePart(raw json.RawMessage) (Part, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode part type: %w", err)
	}

	var p Part
	switch head.Type {
	case PartTypeText:
		var v TextPart
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case PartTypeImage:
		var v ImagePart
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case PartTypeToolCall:
		var v ToolCallPart
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case PartTypeToolResult:
		var v ToolResultPart
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case PartTypeReasoning:
		var v ReasoningPart
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown part type %q", head.Type)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func marshalPart(p Part) ([]byte, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			TextPart
		}{PartTypeText, v})
	case ImagePart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ImagePart
		}{PartTypeImage, v})
	case ToolCallPart:
		if v.Args == nil {
			v.Args = map[string]any{}
		}
		return json.Marshal(struct {
			Type string `json:"type"`
			ToolCallPart
		}{PartTypeToolCall, v})
	case ToolResultPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ToolResultPart
		}{PartTypeToolResult, v})
	case ReasoningPart:
		return json.Marshal(struct {
			Type string `json:"type"`
			ReasoningPart
		}{PartTypeReasoning, v})
	default:
		return nil, fmt.Errorf("unsupported part %T", p)
	}
}
