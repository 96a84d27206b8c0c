package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphwright/graphwright/internal/orchestrator"
	"github.com/graphwright/graphwright/internal/types"
)

var (
	resumeChoices []string
	resumeAnswer  string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a suspended session, optionally with human answers",
	Long: `Resume loads the session's checkpoint and continues it at the node it
suspended on. A session waiting on disambiguation takes --choose
"mention=key" (an empty key creates a new entity); a session waiting on an
escalation takes --answer with free-text guidance.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sessionID, err := types.ParseID(args[0])
		if err != nil {
			return err
		}

		var opts []orchestrator.ResumeOption
		for _, choice := range resumeChoices {
			mention, key, found := strings.Cut(choice, "=")
			if !found || mention == "" {
				return fmt.Errorf("--choose wants \"mention=key\", got %q", choice)
			}
			opts = append(opts, orchestrator.WithDisambiguationChoice(mention, key))
		}
		if resumeAnswer != "" {
			opts = append(opts, orchestrator.WithEscalationAnswer(resumeAnswer))
		}

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		state, err := a.orch.Resume(ctx, sessionID, opts...)
		if err != nil {
			return err
		}
		return report(state)
	},
}

func init() {
	resumeCmd.Flags().StringArrayVar(&resumeChoices, "choose", nil,
		`disambiguation answer as "mention=key"; repeatable, empty key creates a new entity`)
	resumeCmd.Flags().StringVar(&resumeAnswer, "answer", "",
		"free-text guidance for a session suspended on an escalation")
}
