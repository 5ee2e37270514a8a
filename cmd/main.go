package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"careai-backend/internal/app"
	"careai-backend/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// ---- Services ----
	a, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to build application", "err", err)
		os.Exit(1)
	}

	logger.Info("triage lambda ready",
		"safe_model", cfg.SafeModel,
		"default_model", cfg.DefaultModel,
		"history", a.History != nil,
	)
	lambda.Start(a.Handler.Handle)
}
