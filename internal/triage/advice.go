package triage

import (
	"regexp"
	"strings"
)

const maxAdvice = 6

// DefaultAdvice is substituted whenever no advice can be extracted.
const DefaultAdvice = "Consider basic self-care measures and monitor your symptoms."

var leadWords = []string{
	"Seek", "Avoid", "Monitor", "Contact", "Call", "Rest", "Drink", "Take",
	"Keep", "See", "Stay", "Use", "Get", "Apply", "Consider", "Watch", "Go",
}

var (
	leadWordPattern = regexp.MustCompile(`\b(?:` + strings.Join(leadWords, "|") + `)\b`)
	sentenceEnd     = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
	bulletPrefix    = regexp.MustCompile(`^(?:(?:[-*•]|\d{1,2}[.)])\s+)+`)
)

func normalizeAdvice(v any, ok bool) []string {
	var items []string
	if ok {
		switch t := v.(type) {
		case []any:
			for _, e := range t {
				if s, ok := adviceElement(e); ok {
					items = appendFragment(items, s)
				}
			}
		default:
			if s, ok := asString(t); ok {
				items = splitAdviceText(s)
			}
		}
	}

	if len(items) > maxAdvice {
		items = items[:maxAdvice]
	}
	for i := range items {
		items[i] = ensureTerminal(items[i])
	}
	if len(items) == 0 {
		return []string{DefaultAdvice}
	}
	return items
}

// adviceElement coerces one array entry; objects are accepted when they carry
// the text under a recognizable key.
func adviceElement(e any) (string, bool) {
	if obj, ok := e.(map[string]any); ok {
		v, found := newFieldSet(obj).lookup("text", "tip", "advice", "action", "step")
		if !found {
			return "", false
		}
		return asString(v)
	}
	return asString(e)
}

func splitAdviceText(s string) []string {
	var frags []string
	for _, line := range strings.Split(s, "\n") {
		line = bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		frags = append(frags, splitSentences(line)...)
	}
	if len(frags) == 1 {
		return splitOnLeadWords(frags[0])
	}
	return frags
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(s, -1) {
		out = appendFragment(out, s[start:loc[1]])
		start = loc[1]
	}
	return appendFragment(out, s[start:])
}

func splitOnLeadWords(s string) []string {
	var out []string
	start := 0
	for _, loc := range leadWordPattern.FindAllStringIndex(s, -1) {
		if loc[0] == 0 {
			continue
		}
		out = appendFragment(out, s[start:loc[0]])
		start = loc[0]
	}
	return appendFragment(out, s[start:])
}

func appendFragment(out []string, s string) []string {
	s = bulletPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.TrimSpace(strings.TrimRight(s, ",;: \t"))
	if s == "" {
		return out
	}
	return append(out, s)
}

func ensureTerminal(s string) string {
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}
