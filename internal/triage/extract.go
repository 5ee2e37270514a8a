package triage

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	openFence  = regexp.MustCompile("^```[ \t]*[A-Za-z0-9_+-]*")
	closeFence = regexp.MustCompile("```\\s*$")
)

// stripFences removes a leading ``` (with optional language tag) and a
// trailing ``` from s.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = openFence.ReplaceAllString(s, "")
	s = closeFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// extractObject returns the balanced {...} span that starts at the first
// opening brace in s. Braces inside JSON strings are ignored.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// removeTrailingCommas drops commas that directly precede a closing brace or
// bracket, outside of strings.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' && closesNext(s[i+1:]) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesNext(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	return rest != "" && (rest[0] == '}' || rest[0] == ']')
}

func decodeObject(span string) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewBufferString(span))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// decode runs fence stripping, object extraction and the strict-then-repaired
// parse. ok is false when no object could be recovered.
func decode(raw string) (fields map[string]any, outcome Outcome, ok bool) {
	span, found := extractObject(stripFences(raw))
	if !found {
		return nil, OutcomeFallback, false
	}
	if obj, ok := decodeObject(span); ok {
		return obj, OutcomeStrict, true
	}
	if obj, ok := decodeObject(removeTrailingCommas(span)); ok {
		return obj, OutcomeRepaired, true
	}
	return nil, OutcomeFallback, false
}
