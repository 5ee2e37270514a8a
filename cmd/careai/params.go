package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"careai-backend/internal/app"
)

// checkedParams are the SSM parameters read at runtime, relative to the prefix.
var checkedParams = []string{"/open-ai-token", "/config/openai_model"}

func newCheckParamsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-params",
		Short: "Report which runtime parameters exist under CAREAI_PARAM_PREFIX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.ParamPrefix == "" {
				return errors.New("CAREAI_PARAM_PREFIX is not set")
			}

			a, err := app.New(cmd.Context(), cfg, app.Options{Logger: cfg.NewLogger(cmd.ErrOrStderr())})
			if err != nil {
				return err
			}

			names := make([]string, 0, len(checkedParams))
			for _, p := range checkedParams {
				names = append(names, cfg.ParamPrefix+p)
			}
			found, err := a.Params.GetParameters(cmd.Context(), names...)
			if err != nil {
				return err
			}

			for _, name := range names {
				state := "missing"
				if _, ok := found[name]; ok {
					state = "present"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", name, state)
			}
			return nil
		},
	}
}
