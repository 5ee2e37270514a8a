package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"careai-backend/internal/domain"
	"careai-backend/internal/integrations/openai"
)

type llmResult struct {
	out *domain.Completion
	err error
}

// scriptedLLM returns results in order and records every request it sees.
type scriptedLLM struct {
	mu       sync.Mutex
	results  []llmResult
	requests []domain.CompletionRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.results) == 0 {
		return nil, errors.New("no llm response configured")
	}
	idx := len(s.requests) - 1
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	r := s.results[idx]
	if r.out != nil {
		out := *r.out
		out.Model = req.Model
		return &out, r.err
	}
	return nil, r.err
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func replyWith(content string) llmResult {
	body := fmt.Sprintf(`{"choices":[{"index":0,"message":{"role":"assistant","content":%q}}]}`, content)
	return llmResult{out: &domain.Completion{Body: []byte(body), Content: content, Choices: 1}}
}

func failWith(status int, body string) llmResult {
	return llmResult{err: fmt.Errorf("openai: request failed: %w",
		openaiStatusError(status, body))}
}

func openaiStatusError(status int, body string) *openai.HTTPStatusError {
	e := &openai.HTTPStatusError{StatusCode: status, URL: "https://api.test/v1/chat/completions", Body: body}
	switch body {
	case `{"error":{"code":"model_not_found","message":"The model does not exist"}}`:
		e.Code, e.Message = "model_not_found", "The model does not exist"
	case `{"error":"model_not_found"}`:
		e.Code, e.Message = "model_not_found", "model_not_found"
	case `{"error":{"code":"unsupported_model","message":"unsupported"}}`:
		e.Code, e.Message = "unsupported_model", "unsupported"
	}
	return e
}

const (
	modelNotFoundBody     = `{"error":{"code":"model_not_found","message":"The model does not exist"}}`
	flatModelNotFoundBody = `{"error":"model_not_found"}`
)

type mockParams struct {
	mu    sync.Mutex
	vals  map[string]string
	err   error
	calls int
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param %s: %w", name, domain.ErrNotFound)
	}
	return v, nil
}

type transientParams struct {
	*mockParams
	failOnce bool
}

func (p *transientParams) GetParameter(ctx context.Context, name string) (string, error) {
	if p.failOnce {
		p.failOnce = false
		return "", errors.New("temporary ssm failure")
	}
	return p.mockParams.GetParameter(ctx, name)
}

type memHistory struct {
	mu        sync.Mutex
	records   []domain.HistoryRecord
	saveErr   error
	listErr   error
	deleteErr error
	lastLimit int
}

func (m *memHistory) SaveRecord(_ context.Context, rec domain.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memHistory) ListHistory(_ context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.HistoryRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memHistory) DeleteHistory(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, r := range m.records {
		if r.UserID == userID && r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("history %s: %w", id, domain.ErrNotFound)
}

type fakeTranscriber struct {
	text     string
	err      error
	filename string
	model    string
	audio    string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, filename, model string) (string, error) {
	f.filename = filename
	f.model = model
	if b, err := io.ReadAll(audio); err == nil {
		f.audio = string(b)
	}
	return f.text, f.err
}

func expectUsecaseError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}
