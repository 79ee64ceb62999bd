package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StringList coerces a decoded JSON value into a list of trimmed, non-empty
// strings. A scalar becomes a one-element list and null becomes empty.
func StringList(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case nil:
		return out
	case []any:
		for _, item := range val {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range val {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s, ok := scalarString(val); ok {
			out = append(out, s)
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		s = val.String()
	case bool:
		s = strconv.FormatBool(val)
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Float coerces a number or numeric string. Non-numeric values report false.
func Float(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// WeightMap coerces a decoded JSON object into keyword weights clamped to
// [0,1]. Entries whose value is not numeric are dropped.
func WeightMap(v any) map[string]float64 {
	out := make(map[string]float64)
	obj, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, raw := range obj {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		f, ok := Float(raw)
		if !ok {
			continue
		}
		out[key] = math.Max(0, math.Min(1, f))
	}
	return out
}
