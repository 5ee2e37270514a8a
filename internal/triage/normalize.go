package triage

import "careai-backend/internal/domain"

// Outcome records which parse path produced a verdict.
type Outcome string

const (
	OutcomeStrict   Outcome = "strict"
	OutcomeRepaired Outcome = "repaired"
	OutcomeFallback Outcome = "fallback"
)

const (
	defaultCondition  = "Unclear cause"
	fallbackCondition = "General advice"
)

var (
	conditionKeys = []string{"condition", "diagnosis", "label", "title"}
	levelKeys     = []string{"level", "severity", "triage", "triage_level", "risk", "risk_level", "urgency"}
	dangerousKeys = []string{"dangerous", "danger", "is_dangerous", "red_flag", "redflag", "red_flags", "redflags"}
	adviceKeys    = []string{"advice", "advices", "recommendations", "recommendation", "tips", "next_steps"}
)

// Normalize converts raw completion text into a verdict. It never fails.
func Normalize(raw string) domain.Verdict {
	v, _ := Parse(raw)
	return v
}

// Parse is Normalize that also reports the parse path taken.
func Parse(raw string) (domain.Verdict, Outcome) {
	obj, outcome, ok := decode(raw)
	if !ok {
		return fallbackVerdict(raw), OutcomeFallback
	}
	return fromFields(newFieldSet(obj)), outcome
}

func fromFields(fs fieldSet) domain.Verdict {
	condition := defaultCondition
	if v, ok := fs.lookup(conditionKeys...); ok {
		if s, ok := asString(v); ok && s != "" {
			condition = s
		}
	}

	level := resolveLevelValue(fs.lookup(levelKeys...))

	dangerous := false
	if v, ok := fs.lookup(dangerousKeys...); ok {
		dangerous = asBool(v)
	}
	// the upstream claim can raise the flag but never clear it for the top tier
	dangerous = dangerous || level == domain.LevelEmergency

	return domain.Verdict{
		Condition: condition,
		Level:     level,
		Dangerous: dangerous,
		Advice:    normalizeAdvice(fs.lookup(adviceKeys...)),
	}
}

// fallbackVerdict keeps the raw text as a single advice item, cleaned the
// same way as array advice so that a re-normalized verdict is unchanged.
func fallbackVerdict(raw string) domain.Verdict {
	advice := []string{DefaultAdvice}
	if frags := appendFragment(nil, raw); len(frags) == 1 {
		advice = []string{ensureTerminal(frags[0])}
	}
	return domain.Verdict{
		Condition: fallbackCondition,
		Level:     domain.LevelGP,
		Dangerous: false,
		Advice:    advice,
	}
}
