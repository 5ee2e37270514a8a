package usecase

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

const (
	DefaultTranscriptionModel = "whisper-1"
	defaultAudioFilename      = "audio.m4a"
)

// Transcriber converts an audio stream to text with a single upstream call.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, model string) (string, error)
}

type TranscribeInput struct {
	Audio    io.Reader
	Filename string
	Model    string
}

type TranscribeService struct {
	client       Transcriber
	defaultModel string
}

func NewTranscribeService(t Transcriber, defaultModel string) (*TranscribeService, error) {
	if t == nil {
		return nil, errors.New("usecase: transcriber must not be nil")
	}
	defaultModel = strings.TrimSpace(defaultModel)
	if defaultModel == "" {
		defaultModel = DefaultTranscriptionModel
	}
	return &TranscribeService{client: t, defaultModel: defaultModel}, nil
}

func (s *TranscribeService) Transcribe(ctx context.Context, in TranscribeInput) (string, error) {
	if in.Audio == nil {
		return "", newError(ErrorInvalidInput, "missing_audio", nil)
	}
	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = s.defaultModel
	}
	filename := path.Base(strings.TrimSpace(in.Filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = defaultAudioFilename
	}

	text, err := s.client.Transcribe(ctx, in.Audio, filename, model)
	if err != nil {
		return "", classifyUpstreamError(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(ErrorUpstream, "empty_transcript", nil)
	}
	return text, nil
}
