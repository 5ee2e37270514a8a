package domain

// Chat roles accepted by the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one the completion endpoint accepts.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ResponseFormat is the structured-output hint sent with a completion request.
type ResponseFormat struct {
	Type string `json:"type"`
}

// CompletionRequest is the wire shape for the chat completions endpoint.
// Temperature is a pointer so that it can be omitted entirely.
type CompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// WithModel returns a copy of r addressed to model. The message slice is
// shared; callers never mutate it after construction.
func (r CompletionRequest) WithModel(model string) CompletionRequest {
	r.Model = model
	return r
}

// WithoutTemperature returns a copy of r with temperature removed.
func (r CompletionRequest) WithoutTemperature() CompletionRequest {
	r.Temperature = nil
	return r
}

// Completion is a successful upstream response. Body is kept verbatim for
// relaying; Content is the first choice's message when the body decodes.
type Completion struct {
	Model   string
	Body    []byte
	Content string
	Choices int
}
