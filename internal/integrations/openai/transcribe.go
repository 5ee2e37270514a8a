package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
)

// Transcribe relays an audio upload to the transcription endpoint and returns
// the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename, model string) (string, error) {
	if audio == nil {
		return "", errors.New("openai: audio must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		return "", errors.New("openai: transcription model must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	cfg := gopenai.DefaultConfig(apiKey)
	cfg.BaseURL = apiBase(c.baseURL)
	cfg.HTTPClient = c.resolvedHTTPClient()

	resp, err := gopenai.NewClientWithConfig(cfg).CreateTranscription(ctx, gopenai.AudioRequest{
		Model:    model,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcription request failed: %w", c.translateSDKError(err))
	}
	return resp.Text, nil
}

// translateSDKError maps go-openai's error types onto HTTPStatusError so that
// callers see one upstream error shape.
func (c *Client) translateSDKError(err error) error {
	url := transcriptionURL(c.baseURL)

	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPStatusError{
			StatusCode: apiErr.HTTPStatusCode,
			URL:        url,
			Body:       apiErr.Message,
			Code:       firstNonEmpty(codeString(apiErr.Code), apiErr.Type),
			Message:    apiErr.Message,
		}
	}

	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{
			StatusCode: reqErr.HTTPStatusCode,
			URL:        url,
			Body:       reqErr.Error(),
		}
	}
	return err
}
