// Package metrics exposes Prometheus instrumentation for the triage services.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"careai-backend/internal/domain"
	"careai-backend/internal/triage"
	"careai-backend/internal/usecase"
)

// Metrics holds Prometheus metrics for the triage backend.
type Metrics struct {
	UpstreamAttempts  *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	ModelFallbacks    *prometheus.CounterVec
	VerdictsTotal     *prometheus.CounterVec
	HistoryOperations *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec

	knownModels map[string]bool
}

// otherModel labels every model outside the known set, since request bodies
// choose the model.
const otherModel = "other"

// NewMetrics registers and returns metrics on the given registerer. Only
// knownModels appear as model label values.
func NewMetrics(reg prometheus.Registerer, knownModels ...string) *Metrics {
	m := &Metrics{
		knownModels: make(map[string]bool, len(knownModels)),
		UpstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careai_upstream_attempts_total",
			Help: "Completion attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careai_upstream_duration_seconds",
			Help:    "Duration of individual completion calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}, []string{"model"}),
		ModelFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careai_model_fallbacks_total",
			Help: "Retries on the safe model after the requested model was unavailable.",
		}, []string{"from", "to"}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careai_verdicts_total",
			Help: "Normalized verdicts by parse outcome, level and danger flag.",
		}, []string{"outcome", "level", "dangerous"}),
		HistoryOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careai_history_operations_total",
			Help: "History store operations by result.",
		}, []string{"op", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careai_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	for _, model := range knownModels {
		if model != "" {
			m.knownModels[model] = true
		}
	}

	reg.MustRegister(
		m.UpstreamAttempts,
		m.UpstreamDuration,
		m.ModelFallbacks,
		m.VerdictsTotal,
		m.HistoryOperations,
		m.HTTPRequests,
	)

	return m
}

// Hooks returns usecase.Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() usecase.Hooks {
	return usecase.Hooks{
		OnAttempt: func(model, outcome string, duration float64) {
			label := m.modelLabel(model)
			m.UpstreamAttempts.WithLabelValues(label, outcome).Inc()
			m.UpstreamDuration.WithLabelValues(label).Observe(duration)
		},
		OnFallback: func(from, to string) {
			m.ModelFallbacks.WithLabelValues(m.modelLabel(from), m.modelLabel(to)).Inc()
		},
		OnNormalize: func(outcome triage.Outcome, level domain.Level, dangerous bool) {
			m.VerdictsTotal.WithLabelValues(string(outcome), string(level), strconv.FormatBool(dangerous)).Inc()
		},
		OnHistory: func(op string, ok bool) {
			result := "success"
			if !ok {
				result = "error"
			}
			m.HistoryOperations.WithLabelValues(op, result).Inc()
		},
	}
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) modelLabel(model string) string {
	if m.knownModels[model] {
		return model
	}
	return otherModel
}
