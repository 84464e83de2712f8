package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bturcanu/sfclause/pkg/types"
)

// Args are the caller-supplied arguments of one tool call, as decoded from
// JSON by the MCP or HTTP surface.
type Args map[string]any

// ArgsFromJSON decodes a JSON object into Args. An empty payload yields
// empty Args.
func ArgsFromJSON(raw json.RawMessage) (Args, error) {
	args := Args{}
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, types.ErrValidation("params", "must be a JSON object: "+err.Error())
	}
	return args, nil
}

func (a Args) has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns the argument as a string. Non-string scalars are
// formatted; a missing argument is "".
func (a Args) String(name string) string {
	v, ok := a[name]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// RequiredString returns the trimmed argument or a validation error when
// it is missing or blank.
func (a Args) RequiredString(name string) (string, error) {
	s := strings.TrimSpace(a.String(name))
	if s == "" {
		return "", types.ErrValidation(name, "required")
	}
	return s, nil
}

// Int returns the argument as an integer, or def when it is absent.
// Integral floats and numeric strings are accepted.
func (a Args) Int(name string, def int) (int, error) {
	if !a.has(name) {
		return def, nil
	}
	switch v := a[name].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || v >= float64(math.MaxInt) || v < float64(math.MinInt) {
			return 0, types.ErrValidation(name, "must be an integer")
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, types.ErrValidation(name, "must be an integer")
		}
		return int(n), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, types.ErrValidation(name, "must be an integer")
		}
		return n, nil
	default:
		return 0, types.ErrValidation(name, "must be an integer")
	}
}

// Object returns a field map. The argument may be a JSON-encoded string
// (the documented form) or an already decoded object.
func (a Args) Object(name string) (map[string]any, error) {
	if !a.has(name) {
		return nil, types.ErrValidation(name, "required")
	}
	switch v := a[name].(type) {
	case map[string]any:
		return v, nil
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, types.ErrValidation(name, "must be a JSON object: "+err.Error())
		}
		if out == nil {
			return nil, types.ErrValidation(name, "must be a JSON object")
		}
		return out, nil
	default:
		return nil, types.ErrValidation(name, "must be a JSON object")
	}
}

// Records returns a list of field maps, from a JSON-encoded array string or
// an already decoded array.
func (a Args) Records(name string) ([]map[string]any, error) {
	if !a.has(name) {
		return nil, types.ErrValidation(name, "required")
	}
	var items []any
	switch v := a[name].(type) {
	case []any:
		items = v
	case []map[string]any:
		return v, nil
	case string:
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return nil, types.ErrValidation(name, "must be a JSON array of objects: "+err.Error())
		}
	default:
		return nil, types.ErrValidation(name, "must be a JSON array of objects")
	}

	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, types.ErrValidation(name, fmt.Sprintf("element %d is not an object", i))
		}
		out = append(out, rec)
	}
	return out, nil
}
