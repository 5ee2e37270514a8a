package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"careai-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// URL helpers
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestTranscriptionURL(t *testing.T) {
	require.Equal(t, "https://api.openai.com/v1/audio/transcriptions", transcriptionURL(""))
	require.Equal(t, "http://localhost:8080/v1/audio/transcriptions", transcriptionURL("http://localhost:8080/"))
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilGetter(t *testing.T) {
	_, err := NewClient(nil, "/careai")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_EmptyPrefix(t *testing.T) {
	_, err := NewClient(&fakeGetter{}, " / ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "prefix")
}

func TestNewClient_Valid(t *testing.T) {
	g := &fakeGetter{}
	c, err := NewClient(g, "/careai")
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
	require.Equal(t, 20*time.Second, c.httpClient.Timeout)
	require.NotNil(t, c.getter)
}

func TestNewClient_StaticKeyNeedsNoGetter(t *testing.T) {
	c, err := NewClient(nil, "", WithAPIKey("sk-local"))
	require.NoError(t, err)
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-local", key)
}

// ---------------------------------------------------------------------------
// resolveAPIKey: SSM caching behaviour
// ---------------------------------------------------------------------------

func TestResolveAPIKey_FetchedOnFirstCall(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`}
	g.onCall = func() { calls++ }
	c, err := NewClient(g, "/careai")
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)
	require.Equal(t, 1, calls)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls, "SSM must only be called once per process lifetime")
}

func TestResolveAPIKey_RetriesAfterFailedFetch(t *testing.T) {
	calls := 0
	g := &fakeGetter{err: errors.New("ssm: throttled")}
	g.onCall = func() {
		calls++
		if calls > 1 {
			g.err = nil
			g.val = `{"token":"sk-second"}`
		}
	}
	c, err := NewClient(g, "/careai")
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.ErrorContains(t, err, "throttled")

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-second", key)
	require.Equal(t, 2, calls)

	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 2, calls)
}

func TestComplete_RecoversAfterKeyFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	calls := 0
	g := &fakeGetter{err: errors.New("ssm: throttled")}
	g.onCall = func() {
		calls++
		if calls > 1 {
			g.err = nil
			g.val = `{"token":"sk-test"}`
		}
	}
	c, err := NewClient(g, "/careai", WithBaseURL(srv.URL))
	require.NoError(t, err)

	req := domain.CompletionRequest{Model: "gpt-4o-mini", Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}}}
	_, err = c.Complete(context.Background(), req)
	require.Error(t, err)

	out, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "ok", out.Content)
}

// ---------------------------------------------------------------------------
// fetchAPIKeyFromParamStore
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val    string
	err    error
	name   string
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.name = name
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestFetchAPIKey_JSONToken(t *testing.T) {
	g := &fakeGetter{val: `{"token":"sk-from-json"}`}
	key, err := fetchAPIKeyFromParamStore(context.Background(), g, "/careai/open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-from-json", key)
	require.Equal(t, "/careai/open-ai-token", g.name)
}

func TestFetchAPIKey_JSONMissingTokenField(t *testing.T) {
	g := &fakeGetter{val: `{"other":"value"}`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/careai/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API token is empty")
}

func TestFetchAPIKey_MalformedJSON(t *testing.T) {
	g := &fakeGetter{val: `{"broken`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/careai/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestFetchAPIKey_GetterError(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/careai/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestFetchAPIKey_NilGetter(t *testing.T) {
	_, err := fetchAPIKeyFromParamStore(context.Background(), nil, "/careai/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

// ---------------------------------------------------------------------------
// Client.Complete
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeGetter{val: `{"token":"sk-test"}`},
		"/careai",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func temp(v float64) *float64 { return &v }

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(reqBody), `"model":"gpt-mock"`)
		require.Contains(t, string(reqBody), `"temperature":0.2`)
		require.Contains(t, string(reqBody), `"response_format":{"type":"json_object"}`)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hello from mock" }
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:          "gpt-mock",
		Messages:       []domain.ChatMessage{{Role: "user", Content: "hi"}},
		Temperature:    temp(0.2),
		ResponseFormat: &domain.ResponseFormat{Type: "json_object"},
	})
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", out.Content)
	require.Equal(t, 1, out.Choices)
	require.Equal(t, "gpt-mock", out.Model)
	require.Contains(t, string(out.Body), "chatcmpl-123")
}

func TestClient_Complete_OmitsNilTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NotContains(t, string(reqBody), "temperature")
		require.NotContains(t, string(reqBody), "response_format")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "o4-mini"})
	require.NoError(t, err)
	require.Equal(t, "ok", out.Content)
}

func TestClient_Complete_Non200CarriesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_, _ = w.Write([]byte(`{"error":{"code":"model_not_found","message":"The model does not exist"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "gpt-missing"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")
	require.Contains(t, err.Error(), "404")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, "model_not_found", statusErr.Code)
	require.Equal(t, "The model does not exist", statusErr.UpstreamMessage())
	require.True(t, statusErr.ModelUnavailable())
}

func TestClient_Complete_NonJSONBodyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "gpt-mock"})
	require.NoError(t, err)
	require.Zero(t, out.Choices)
	require.Equal(t, "not-a-json", string(out.Body))
}

func TestClient_Complete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "gpt-mock"})
	require.Error(t, err)
}

func TestClient_Complete_EmptyModel(t *testing.T) {
	c, err := NewClient(&fakeGetter{val: `{"token":"sk-test"}`}, "/careai")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), domain.CompletionRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClient_Complete_NetworkError(t *testing.T) {
	c, err := NewClient(&fakeGetter{val: `{"token":"sk-test"}`}, "/careai")
	require.NoError(t, err)
	c.baseURL = "http://127.0.0.1:1"
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Complete(context.Background(), domain.CompletionRequest{Model: "gpt-mock"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Complete_KeyError(t *testing.T) {
	c, err := NewClient(&fakeGetter{err: errors.New("ssm down")}, "/careai")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), domain.CompletionRequest{Model: "gpt-mock"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm down")
}

func TestClient_Complete_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), domain.CompletionRequest{Model: "gpt-mock"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	require.False(t, statusErr.ModelUnavailable())
}

func TestComplete_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"`)
		_, _ = io.WriteString(w, strings.Repeat("a", maxResponseSize))
		_, _ = io.WriteString(w, `"}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestComplete_ResponseAtLimitIsRead(t *testing.T) {
	prefix := `{"choices":[{"index":0,"message":{"role":"assistant","content":"`
	suffix := `"}}]}`
	body := prefix + strings.Repeat("a", maxResponseSize-len(prefix)-len(suffix)) + suffix
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Choices)
	require.Len(t, out.Body, maxResponseSize)
}
