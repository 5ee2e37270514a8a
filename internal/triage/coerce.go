package triage

import (
	"encoding/json"
	"strconv"
	"strings"
)

// asString coerces a decoded JSON scalar to a trimmed string. Objects, arrays
// and null are not coercible.
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case []any:
		// red flag lists
		return len(t) > 0
	}
	return false
}

var keyReplacer = strings.NewReplacer("-", "_", " ", "_")

func fieldKey(k string) string {
	return keyReplacer.Replace(strings.ToLower(strings.TrimSpace(k)))
}

// fieldSet is a decoded object with keys folded for lookup.
type fieldSet map[string]any

func newFieldSet(obj map[string]any) fieldSet {
	fs := make(fieldSet, len(obj))
	for k, v := range obj {
		key := fieldKey(k)
		if _, exists := fs[key]; exists {
			continue
		}
		fs[key] = v
	}
	return fs
}

// lookup returns the first non-null value stored under any of the aliases.
func (fs fieldSet) lookup(aliases ...string) (any, bool) {
	for _, a := range aliases {
		if v, ok := fs[a]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
