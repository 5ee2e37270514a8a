// Package app wires configuration, AWS clients and services into a Handler.
// Both the Lambda entrypoint and the careai CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"

	"careai-backend/handler"
	"careai-backend/internal/config"
	"careai-backend/internal/integrations/openai"
	"careai-backend/internal/integrations/paramstore"
	"careai-backend/internal/metrics"
	"careai-backend/internal/repository"
	"careai-backend/internal/usecase"
)

// Options tune how New builds the application.
type Options struct {
	Logger *slog.Logger
	// Registerer enables Prometheus metrics when set.
	Registerer prometheus.Registerer
	// AWS overrides the default AWS config chain.
	AWS *aws.Config
	// History replaces the DynamoDB store, e.g. with memstore for local runs.
	History usecase.HistoryStore
}

// App holds the wired services.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Params     *paramstore.Client
	Gateway    *usecase.Gateway
	Triage     *usecase.TriageService
	Relay      *usecase.RelayService
	Transcribe *usecase.TranscribeService
	History    *usecase.HistoryService
	Handler    *handler.Handler
}

// New builds every service described by cfg. AWS clients are created only
// when a parameter prefix or a history table is configured.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	var hooks usecase.Hooks
	if opts.Registerer != nil {
		a.Metrics = metrics.NewMetrics(opts.Registerer, cfg.SafeModel, cfg.DefaultModel)
		hooks = a.Metrics.Hooks()
	}

	var awsCfg aws.Config
	if cfg.ParamPrefix != "" || (cfg.HistoryTable != "" && opts.History == nil) {
		if opts.AWS != nil {
			awsCfg = *opts.AWS
		} else {
			loaded, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("app: load AWS config: %w", err)
			}
			awsCfg = loaded
		}
	}

	// ---- Clients ----
	var getter openai.Getter
	var params usecase.ParamGetter
	if cfg.ParamPrefix != "" {
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
		a.Params = ps
		getter, params = ps, ps
	}

	clientOpts := []openai.Option{
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	}
	if cfg.OpenAIAPIKey != "" {
		clientOpts = append(clientOpts, openai.WithAPIKey(cfg.OpenAIAPIKey))
	}
	llm, err := openai.NewClient(getter, cfg.ParamPrefix, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create OpenAI client: %w", err)
	}

	store := opts.History
	if store == nil && cfg.HistoryTable != "" {
		repo, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.HistoryTable)
		if err != nil {
			return nil, fmt.Errorf("app: create history repository: %w", err)
		}
		store = repo
	}
	if store != nil {
		if a.History, err = usecase.NewHistoryService(store, hooks); err != nil {
			return nil, fmt.Errorf("app: create history service: %w", err)
		}
	}

	// ---- Services ----
	a.Gateway, err = usecase.NewGateway(llm,
		usecase.WithSafeModel(cfg.SafeModel),
		usecase.WithTemperature(cfg.Temperature),
		usecase.WithLogger(logger),
		usecase.WithHooks(hooks),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create gateway: %w", err)
	}

	a.Triage, err = usecase.NewTriageService(a.Gateway, params, a.History, usecase.TriageConfig{
		ParamPrefix:   cfg.ParamPrefix,
		DefaultModel:  cfg.DefaultModel,
		MaxTextLength: cfg.MaxTextLength,
	}, logger, hooks)
	if err != nil {
		return nil, fmt.Errorf("app: create triage service: %w", err)
	}

	if a.Relay, err = usecase.NewRelayService(a.Gateway); err != nil {
		return nil, fmt.Errorf("app: create relay service: %w", err)
	}
	if a.Transcribe, err = usecase.NewTranscribeService(llm, cfg.TranscriptionModel); err != nil {
		return nil, fmt.Errorf("app: create transcribe service: %w", err)
	}

	// ---- Handler ----
	deps := handler.Deps{
		Triage:         a.Triage,
		Relay:          a.Relay,
		Transcribe:     a.Transcribe,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	}
	if a.History != nil {
		deps.History = a.History
	}
	if a.Metrics != nil {
		deps.Metrics = a.Metrics
	}
	if a.Handler, err = handler.NewHandler(deps); err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}
	return a, nil
}
