package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSONBlock strips a markdown code fence, with or without a language
// tag, from around a model response.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if nl := strings.Index(text, "\n"); nl >= 0 {
		tag := strings.TrimSpace(text[:nl])
		if len(tag) < 20 && !strings.ContainsAny(tag, " {[") {
			text = text[nl+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// DecodeObject cleans a model response and decodes it as a JSON object.
// Arrays, scalars and invalid JSON are errors.
func DecodeObject(text string) (map[string]any, error) {
	cleaned := CleanJSONBlock(text)
	if cleaned == "" {
		return nil, fmt.Errorf("model returned an empty response")
	}

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("model output is a JSON %s, expected an object", jsonKind(value))
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
