package main

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"careai-backend/internal/app"
	"careai-backend/internal/domain"
	"careai-backend/internal/triage"
	"careai-backend/internal/usecase"
)

type triageResult struct {
	domain.Verdict
	Outcome triage.Outcome `json:"outcome"`
	ID      string         `json:"id,omitempty"`
}

func newTriageCmd(opts *rootOptions) *cobra.Command {
	var model, userID string
	cmd := &cobra.Command{
		Use:   "triage [text...]",
		Short: "Triage one symptom description and print the verdict",
		Long:  `Reads the description from the arguments, or from stdin when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(cmd.ErrOrStderr())

			a, err := app.New(cmd.Context(), cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}
			out, err := a.Triage.Triage(cmd.Context(), usecase.TriageInput{Text: text, Model: model, UserID: userID})
			if err != nil {
				return err
			}

			res := triageResult{Verdict: out.Verdict, Outcome: out.Outcome}
			if out.Record != nil {
				res.ID = out.Record.ID
			}
			return writeIndented(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "preferred model (defaults to the configured model)")
	cmd.Flags().StringVar(&userID, "user", "", "save the verdict to this user's history")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Normalize raw model output from stdin into a verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			verdict, outcome := triage.Parse(string(raw))
			return writeIndented(cmd.OutOrStdout(), triageResult{Verdict: verdict, Outcome: outcome})
		},
	}
}

func inputText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", errors.New("no symptom text given")
	}
	return text, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
