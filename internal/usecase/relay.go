package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"careai-backend/internal/domain"
)

const maxRelayMessages = 50

type bodyCarrier interface {
	ResponseBody() []byte
}

type RelayInput struct {
	Model       string
	Temperature *float64
	Messages    []domain.ChatMessage
}

// RelayOutput is the upstream response to hand back unchanged.
type RelayOutput struct {
	Status int
	Body   []byte
	Model  string
}

// RelayService forwards caller-built chat requests through the gateway.
type RelayService struct {
	gateway *Gateway
}

func NewRelayService(gw *Gateway) (*RelayService, error) {
	if gw == nil {
		return nil, errors.New("usecase: gateway must not be nil")
	}
	return &RelayService{gateway: gw}, nil
}

// Relay validates in and returns the upstream body verbatim. Upstream
// failures that carry a status are returned as output, not as errors, so the
// caller sees exactly what the provider said.
func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	if len(in.Messages) == 0 {
		return RelayOutput{}, newError(ErrorInvalidInput, "missing_messages", nil)
	}
	if len(in.Messages) > maxRelayMessages {
		return RelayOutput{}, newError(ErrorInvalidInput, "too_many_messages", nil)
	}
	for _, m := range in.Messages {
		if !domain.ValidRole(m.Role) {
			return RelayOutput{}, newError(ErrorInvalidInput, "invalid_role", nil)
		}
	}

	req := domain.CompletionRequest{
		Model:       strings.TrimSpace(in.Model),
		Messages:    in.Messages,
		Temperature: in.Temperature,
	}
	out, err := s.gateway.Complete(ctx, req)
	if err == nil {
		return RelayOutput{Status: http.StatusOK, Body: out.Body, Model: out.Model}, nil
	}

	var usecaseErr *Error
	if errors.As(err, &usecaseErr) && usecaseErr.Code != ErrorTimeout {
		status, hasStatus := upstreamStatusCode(err)
		var body bodyCarrier
		if hasStatus && errors.As(err, &body) {
			return RelayOutput{Status: status, Body: body.ResponseBody()}, nil
		}
	}
	return RelayOutput{}, err
}
