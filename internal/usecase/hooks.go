package usecase

import (
	"careai-backend/internal/domain"
	"careai-backend/internal/triage"
)

// Attempt outcomes reported through Hooks.OnAttempt.
const (
	AttemptSuccess   = "success"
	AttemptRetryable = "retryable"
	AttemptTerminal  = "terminal"
)

// Hooks receives lifecycle events from the services. Nil fields are skipped.
type Hooks struct {
	OnAttempt   func(model, outcome string, duration float64)
	OnFallback  func(from, to string)
	OnNormalize func(outcome triage.Outcome, level domain.Level, dangerous bool)
	OnHistory   func(op string, ok bool)
}

func (h Hooks) attempt(model, outcome string, duration float64) {
	if h.OnAttempt != nil {
		h.OnAttempt(model, outcome, duration)
	}
}

func (h Hooks) fallback(from, to string) {
	if h.OnFallback != nil {
		h.OnFallback(from, to)
	}
}

func (h Hooks) normalize(outcome triage.Outcome, v domain.Verdict) {
	if h.OnNormalize != nil {
		h.OnNormalize(outcome, v.Level, v.Dangerous)
	}
}

func (h Hooks) history(op string, ok bool) {
	if h.OnHistory != nil {
		h.OnHistory(op, ok)
	}
}
