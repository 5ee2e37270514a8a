package openai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Upstream error codes that mean the requested model cannot serve the call.
var modelUnavailableCodes = map[string]bool{
	"model_not_found":   true,
	"unsupported_model": true,
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
// Code and Message are lifted from the provider's error envelope when present.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
	Code       string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// UpstreamMessage returns the provider's message, falling back to the status text.
func (e *HTTPStatusError) UpstreamMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// ResponseBody returns the upstream body as received, for verbatim relaying.
func (e *HTTPStatusError) ResponseBody() []byte {
	return []byte(e.Body)
}

// ModelUnavailable reports whether the failure identifies the requested model
// as missing or unsupported.
func (e *HTTPStatusError) ModelUnavailable() bool {
	if e.StatusCode != http.StatusNotFound && e.StatusCode != http.StatusBadRequest {
		return false
	}
	return modelUnavailableCodes[e.Code]
}

func newHTTPStatusError(status int, url string, body []byte) *HTTPStatusError {
	code, msg := parseErrorEnvelope(body)
	return &HTTPStatusError{
		StatusCode: status,
		URL:        url,
		Body:       string(body),
		Code:       code,
		Message:    msg,
	}
}

// parseErrorEnvelope understands {"error":{"code":..,"message":..}} as well as
// the flattened {"error":"model_not_found"} and {"message":".."} shapes.
func parseErrorEnvelope(body []byte) (code, message string) {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ""
	}
	message = env.Message

	var flat string
	if err := json.Unmarshal(env.Error, &flat); err == nil {
		return flat, firstNonEmpty(message, flat)
	}

	var detail struct {
		Code    any    `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Error, &detail); err == nil {
		code = codeString(detail.Code)
		if code == "" {
			code = detail.Type
		}
		message = firstNonEmpty(detail.Message, message)
	}
	return code, message
}

func codeString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%g", t)
	case int:
		return fmt.Sprintf("%d", t)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
