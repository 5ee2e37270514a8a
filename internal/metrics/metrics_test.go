package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"careai-backend/internal/domain"
	"careai-backend/internal/triage"
	"careai-backend/internal/usecase"
)

func TestNewMetrics_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Hooks().OnAttempt("o4-mini", usecase.AttemptSuccess, 0.5)
	m.Hooks().OnFallback("gpt-x", "o4-mini")
	m.Hooks().OnNormalize(triage.OutcomeStrict, domain.LevelGP, false)
	m.Hooks().OnHistory("save", true)
	m.ObserveRequest("/triage", 200)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 6)
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	require.Panics(t, func() { NewMetrics(reg) })
}

func TestHooks_UpdateCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "o4-mini", "gpt-x")
	h := m.Hooks()

	h.OnAttempt("gpt-x", usecase.AttemptRetryable, 0.1)
	h.OnAttempt("o4-mini", usecase.AttemptSuccess, 1.2)
	h.OnAttempt("o4-mini", usecase.AttemptSuccess, 0.8)
	require.InDelta(t, 1, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("gpt-x", "retryable")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("o4-mini", "success")), 0)

	h.OnFallback("gpt-x", "o4-mini")
	require.InDelta(t, 1, testutil.ToFloat64(m.ModelFallbacks.WithLabelValues("gpt-x", "o4-mini")), 0)

	h.OnNormalize(triage.OutcomeFallback, domain.LevelEmergency, true)
	require.InDelta(t, 1, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("fallback", "emergency", "true")), 0)

	h.OnHistory("delete", false)
	require.InDelta(t, 1, testutil.ToFloat64(m.HistoryOperations.WithLabelValues("delete", "error")), 0)

	m.ObserveRequest("/history", 404)
	require.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/history", "404")), 0)
}

func TestHooks_UnknownModelsShareOneLabel(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "o4-mini", "")
	h := m.Hooks()

	h.OnAttempt("client-chosen-1", usecase.AttemptRetryable, 0.1)
	h.OnAttempt("client-chosen-2", usecase.AttemptRetryable, 0.1)
	h.OnAttempt("o4-mini", usecase.AttemptSuccess, 0.3)
	h.OnFallback("client-chosen-1", "o4-mini")

	require.InDelta(t, 2, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("other", "retryable")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.UpstreamAttempts.WithLabelValues("o4-mini", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.ModelFallbacks.WithLabelValues("other", "o4-mini")), 0)
	require.Equal(t, 2, testutil.CollectAndCount(m.UpstreamAttempts))
	require.Equal(t, 2, testutil.CollectAndCount(m.UpstreamDuration))
}
