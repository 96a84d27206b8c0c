package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Execute a natural-language goal against the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		state, err := a.orch.Run(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return report(state)
	},
}
