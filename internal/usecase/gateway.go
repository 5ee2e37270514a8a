package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"careai-backend/internal/domain"
)

const (
	DefaultSafeModel   = "o4-mini"
	DefaultTemperature = 0.2
)

// LLMClient performs a single chat completion call. Implementations must not
// retry on their own.
type LLMClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type modelAvailability interface {
	ModelUnavailable() bool
}

// Gateway sends triage and relay requests upstream and applies the one-shot
// safe-model fallback.
type Gateway struct {
	llm         LLMClient
	safeModel   string
	temperature float64
	logger      *slog.Logger
	hooks       Hooks
}

type GatewayOption func(*Gateway)

func WithSafeModel(model string) GatewayOption {
	return func(g *Gateway) {
		if m := strings.TrimSpace(model); m != "" {
			g.safeModel = m
		}
	}
}

func WithTemperature(t float64) GatewayOption {
	return func(g *Gateway) {
		g.temperature = t
	}
}

func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithHooks(h Hooks) GatewayOption {
	return func(g *Gateway) {
		g.hooks = h
	}
}

func NewGateway(llm LLMClient, opts ...GatewayOption) (*Gateway, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	g := &Gateway{
		llm:         llm,
		safeModel:   DefaultSafeModel,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// SafeModel returns the model used as the fallback target.
func (g *Gateway) SafeModel() string {
	return g.safeModel
}

// SendTriageRequest builds the triage prompt for userText and returns the raw
// completion content. preferredModel may be empty, in which case the safe
// model is used directly.
func (g *Gateway) SendTriageRequest(ctx context.Context, userText, preferredModel string) (string, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return "", newError(ErrorInvalidInput, "empty_text", nil)
	}

	temperature := g.temperature
	req := domain.CompletionRequest{
		Model:          strings.TrimSpace(preferredModel),
		Messages:       buildTriageMessages(text),
		Temperature:    &temperature,
		ResponseFormat: &domain.ResponseFormat{Type: responseFormatJSON},
	}

	out, err := g.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if out.Choices == 0 {
		return "", newError(ErrorUpstream, "empty_completion", nil)
	}
	return out.Content, nil
}

// Complete runs req through the attempt sequence: the requested model first,
// then at most one retry on the safe model when the upstream reports the
// requested model as unavailable.
func (g *Gateway) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if strings.TrimSpace(req.Model) == "" {
		req.Model = g.safeModel
	}
	attempts := g.attempts(req)

	for i, attempt := range attempts {
		start := time.Now()
		out, err := g.llm.Complete(ctx, attempt)
		elapsed := time.Since(start).Seconds()
		if err == nil {
			g.hooks.attempt(attempt.Model, AttemptSuccess, elapsed)
			return out, nil
		}

		if i+1 < len(attempts) && modelUnavailable(err) {
			next := attempts[i+1].Model
			g.hooks.attempt(attempt.Model, AttemptRetryable, elapsed)
			g.hooks.fallback(attempt.Model, next)
			g.logger.WarnContext(ctx, "model unavailable, falling back",
				"model", attempt.Model,
				"fallback_model", next,
				"err", err,
			)
			continue
		}

		g.hooks.attempt(attempt.Model, AttemptTerminal, elapsed)
		return nil, classifyUpstreamError(err)
	}
	return nil, newError(ErrorInternal, "no_attempts", nil)
}

// attempts returns the ordered request list. Requests addressed to the safe
// model never carry a temperature.
func (g *Gateway) attempts(req domain.CompletionRequest) []domain.CompletionRequest {
	if req.Model == g.safeModel {
		return []domain.CompletionRequest{req.WithoutTemperature()}
	}
	return []domain.CompletionRequest{
		req,
		req.WithModel(g.safeModel).WithoutTemperature(),
	}
}

func modelUnavailable(err error) bool {
	var m modelAvailability
	return errors.As(err, &m) && m.ModelUnavailable()
}

func classifyUpstreamError(err error) *Error {
	if isTimeout(err) {
		return newError(ErrorTimeout, "openai_timeout", err)
	}
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorRateLimited, "openai_rate_limited", err)
	}
	return newError(ErrorUpstream, "openai_error", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
