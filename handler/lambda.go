package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
)

// Handle adapts an API Gateway proxy event onto the router.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := h.accessor.EventToRequestWithContext(ctx, event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to convert proxy event", "err", err)
		return jsonProxyResponse(http.StatusBadRequest, `{"error":"INVALID_INPUT","message":"malformed request"}`), nil
	}

	w := core.NewProxyResponseWriter()
	h.router.ServeHTTP(w, req)

	resp, err := w.GetProxyResponse()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build proxy response", "err", err)
		return jsonProxyResponse(http.StatusInternalServerError, `{"error":"INTERNAL_ERROR","message":"internal error"}`), nil
	}
	if resp.Headers == nil {
		resp.Headers = make(map[string]string, len(resp.MultiValueHeaders))
	}
	for k, vs := range resp.MultiValueHeaders {
		if _, ok := resp.Headers[k]; !ok && len(vs) > 0 {
			resp.Headers[k] = vs[0]
		}
	}
	return resp, nil
}

func jsonProxyResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}
