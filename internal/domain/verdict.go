package domain

import "time"

// Level is the canonical care-pathway risk tier.
type Level string

const (
	LevelSelfCare  Level = "self-care"
	LevelGP        Level = "gp"
	LevelEmergency Level = "emergency"
)

// Levels lists the tiers from least to most severe.
var Levels = []Level{LevelSelfCare, LevelGP, LevelEmergency}

// Valid reports whether l is one of the canonical tiers.
func (l Level) Valid() bool {
	switch l {
	case LevelSelfCare, LevelGP, LevelEmergency:
		return true
	}
	return false
}

// Verdict is the fixed-shape triage result handed to callers.
type Verdict struct {
	Condition string   `json:"condition"`
	Level     Level    `json:"level"`
	Dangerous bool     `json:"dangerous"`
	Advice    []string `json:"advice"`
}

// HistoryRecord is a stored verdict together with the prompt that produced it.
type HistoryRecord struct {
	PK        string
	SK        string
	ID        string
	UserID    string
	Prompt    string
	Verdict   Verdict
	CreatedAt time.Time
	TTL       int64
}
