package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"careai-backend/internal/config"
	"careai-backend/internal/repository/memstore"
)

func localConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.OpenAIAPIKey = "test-key"
	return cfg
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(context.Background(), nil, Options{})
	require.Error(t, err)
}

func TestNew_LocalWithoutAWS(t *testing.T) {
	a, err := New(context.Background(), localConfig(), Options{})
	require.NoError(t, err)
	require.Nil(t, a.Params)
	require.Nil(t, a.History)
	require.Nil(t, a.Metrics)
	require.Equal(t, "o4-mini", a.Gateway.SafeModel())

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_WithMemoryHistoryAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), localConfig(), Options{
		Registerer: reg,
		History:    memstore.New(),
	})
	require.NoError(t, err)
	require.NotNil(t, a.History)
	require.NotNil(t, a.Metrics)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[]}`, rec.Body.String())

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "careai_http_requests_total")
}

func TestNew_MissingKeyAndPrefix(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := New(context.Background(), cfg, Options{})
	require.ErrorContains(t, err, "OpenAI client")
}
