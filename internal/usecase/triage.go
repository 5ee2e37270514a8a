package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"careai-backend/internal/domain"
	"careai-backend/internal/triage"
)

const defaultMaxTextLength = 2000

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// TriageConfig carries the static settings of a TriageService.
type TriageConfig struct {
	// ParamPrefix enables the <prefix>/config/openai_model override when
	// a ParamGetter is supplied.
	ParamPrefix   string
	DefaultModel  string
	MaxTextLength int
}

type TriageService struct {
	gateway      *Gateway
	params       ParamGetter
	history      *HistoryService
	paramPrefix  string
	defaultModel string
	maxTextLen   int
	logger       *slog.Logger
	hooks        Hooks

	cacheMu     sync.RWMutex
	cacheLoaded bool
	openaiModel string
}

type TriageInput struct {
	Text   string
	Model  string
	UserID string
}

type TriageOutput struct {
	Verdict domain.Verdict
	Outcome triage.Outcome
	// Record is set when the verdict was persisted.
	Record *domain.HistoryRecord
}

// Saved reports whether the verdict was stored in the user's history.
func (o TriageOutput) Saved() bool {
	return o.Record != nil
}

// NewTriageService wires the triage flow. params and history may be nil; the
// former disables the SSM model override, the latter disables persistence.
func NewTriageService(gw *Gateway, params ParamGetter, history *HistoryService, cfg TriageConfig, logger *slog.Logger, hooks Hooks) (*TriageService, error) {
	if gw == nil {
		return nil, errors.New("usecase: gateway must not be nil")
	}
	prefix := strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if params != nil && prefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = defaultMaxTextLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TriageService{
		gateway:      gw,
		params:       params,
		history:      history,
		paramPrefix:  prefix,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		maxTextLen:   cfg.MaxTextLength,
		logger:       logger,
		hooks:        hooks,
	}, nil
}

func (s *TriageService) Triage(ctx context.Context, in TriageInput) (TriageOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return TriageOutput{}, newError(ErrorInvalidInput, "empty_text", nil)
	}
	if utf8.RuneCountInString(text) > s.maxTextLen {
		return TriageOutput{}, newError(ErrorInvalidInput, "text_too_long", nil)
	}

	raw, err := s.gateway.SendTriageRequest(ctx, text, s.resolveModel(ctx, in.Model))
	if err != nil {
		return TriageOutput{}, err
	}

	verdict, outcome := triage.Parse(raw)
	s.hooks.normalize(outcome, verdict)
	if outcome == triage.OutcomeFallback {
		s.logger.WarnContext(ctx, "completion was not parseable, using fallback verdict", "raw_len", len(raw))
	}

	out := TriageOutput{Verdict: verdict, Outcome: outcome}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" || s.history == nil {
		return out, nil
	}

	rec, err := s.history.Save(ctx, userID, text, verdict)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save triage history", "err", err)
		return out, nil
	}
	out.Record = &rec
	return out, nil
}

// resolveModel picks the request model, then the SSM override, then the
// configured default. An empty result means the gateway's safe model.
func (s *TriageService) resolveModel(ctx context.Context, requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if err := s.ensureConfig(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to load model parameter, using default", "err", err)
	}
	s.cacheMu.RLock()
	model := s.openaiModel
	s.cacheMu.RUnlock()
	if model != "" {
		return model
	}
	return s.defaultModel
}

// ensureConfig loads the model parameter once. A missing parameter is cached
// as empty; any other failure is retried on the next call.
func (s *TriageService) ensureConfig(ctx context.Context) error {
	if s.params == nil {
		return nil
	}
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, err := s.params.GetParameter(ctx, s.paramPrefix+"/config/openai_model")
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("usecase: load openai model: %w", err)
	}
	s.openaiModel = strings.TrimSpace(model)
	s.cacheLoaded = true
	return nil
}
