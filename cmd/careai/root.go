package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"careai-backend/internal/config"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "careai",
		Short: "Symptom triage backend",
		Long: `careai sends free-text symptom descriptions to an OpenAI-compatible model
and returns a normalized verdict: condition, care level, danger flag and advice.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading CAREAI_* variables")

	cmd.AddCommand(
		newServeCmd(opts),
		newTriageCmd(opts),
		newNormalizeCmd(),
		newCheckParamsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
