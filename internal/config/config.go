// Package config loads runtime settings from the environment.
//
// Values start from DefaultConfig, are optionally seeded from a .env file and
// are then overridden by CAREAI_* environment variables
// (CAREAI_SAFE_MODEL -> safe_model).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CAREAI_"

// Config holds every runtime setting of the Lambda and the dev server.
type Config struct {
	// ParamPrefix is the SSM path holding open-ai-token and config/*.
	ParamPrefix  string `koanf:"param_prefix"`
	HistoryTable string `koanf:"history_table"`

	OpenAIBaseURL string `koanf:"openai_base_url"`
	// OpenAIAPIKey bypasses SSM. Falls back to OPENAI_API_KEY.
	OpenAIAPIKey       string        `koanf:"openai_api_key"`
	SafeModel          string        `koanf:"safe_model"`
	DefaultModel       string        `koanf:"default_model"`
	Temperature        float64       `koanf:"temperature"`
	TranscriptionModel string        `koanf:"transcription_model"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
	MaxTextLength      int           `koanf:"max_text_length"`

	AllowedOrigins []string `koanf:"allowed_origins"`
	ListenAddr     string   `koanf:"listen_addr"`
	LogLevel       string   `koanf:"log_level"`
	LogFormat      string   `koanf:"log_format"`
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		OpenAIBaseURL:      "https://api.openai.com/v1",
		SafeModel:          "o4-mini",
		DefaultModel:       "gpt-4o-mini",
		Temperature:        0.2,
		TranscriptionModel: "whisper-1",
		RequestTimeout:     20 * time.Second,
		MaxTextLength:      2000,
		ListenAddr:         ":8080",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load builds a Config. envFile, when set, must exist; otherwise a .env in
// the working directory is loaded if present. Variables already set in the
// process environment win over file values.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	k := koanf.New(".")
	cfg := DefaultConfig()

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("config: loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling config: %w", err)
	}

	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)
	return cfg, nil
}

// splitOrigins flattens comma-separated entries and drops blanks.
func splitOrigins(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "text": true}
)

// Validate checks that the configuration is usable and reports every problem
// at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ParamPrefix == "" && c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("either param_prefix or openai_api_key is required"))
	}
	if strings.TrimSpace(c.SafeModel) == "" {
		errs = append(errs, errors.New("safe_model is required"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.MaxTextLength <= 0 {
		errs = append(errs, errors.New("max_text_length must be positive"))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("invalid log_format %q: must be json or text", c.LogFormat))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// NewLogger returns a slog logger writing to w at the configured level and
// format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
