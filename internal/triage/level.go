package triage

import (
	"strings"

	"careai-backend/internal/domain"
)

// levelSynonyms maps every spelling seen from the model, and from older
// history records, onto the care-pathway tiers.
var levelSynonyms = map[string]domain.Level{
	"self-care": domain.LevelSelfCare,
	"selfcare":  domain.LevelSelfCare,
	"home-care": domain.LevelSelfCare,
	"home":      domain.LevelSelfCare,
	"mild":      domain.LevelSelfCare,
	"low":       domain.LevelSelfCare,
	"minor":     domain.LevelSelfCare,
	"none":      domain.LevelSelfCare,

	"gp":           domain.LevelGP,
	"gp-visit":     domain.LevelGP,
	"see-doctor":   domain.LevelGP,
	"see-a-doctor": domain.LevelGP,
	"doctor":       domain.LevelGP,
	"primary-care": domain.LevelGP,
	"clinic":       domain.LevelGP,
	"moderate":     domain.LevelGP,
	"medium":       domain.LevelGP,
	"routine":      domain.LevelGP,
	"non-urgent":   domain.LevelGP,

	"emergency":   domain.LevelEmergency,
	"urgent":      domain.LevelEmergency,
	"urgent-care": domain.LevelEmergency,
	"severe":      domain.LevelEmergency,
	"critical":    domain.LevelEmergency,
	"high":        domain.LevelEmergency,
	"emergent":    domain.LevelEmergency,
	"er":          domain.LevelEmergency,
	"a&e":         domain.LevelEmergency,
}

var levelSeparators = strings.NewReplacer("_", "-", " ", "-")

// ResolveLevel maps a free-form level string to a canonical tier.
// Unrecognized input resolves to the middle tier.
func ResolveLevel(s string) domain.Level {
	key := levelSeparators.Replace(strings.ToLower(strings.TrimSpace(s)))
	if l, ok := levelSynonyms[key]; ok {
		return l
	}
	return domain.LevelGP
}

func resolveLevelValue(v any, ok bool) domain.Level {
	if !ok {
		return domain.LevelGP
	}
	s, ok := asString(v)
	if !ok {
		return domain.LevelGP
	}
	return ResolveLevel(s)
}
