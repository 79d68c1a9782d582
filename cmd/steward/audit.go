package main

import (
	"context"

	"github.com/aretw0/steward/internal/cli"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit <config-path>",
	Short: "Evaluate compliance controls against the host",
	Long:  `Evaluates every control and prints the report. Exits 1 if any control failed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		return cli.Audit(ctx, opts, args[0])
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	formatFlag(auditCmd)
}
