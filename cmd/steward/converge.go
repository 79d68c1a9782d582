package main

import (
	"context"

	"github.com/aretw0/steward/internal/cli"
	"github.com/spf13/cobra"
)

var convergeCmd = &cobra.Command{
	Use:   "converge <config-path>",
	Short: "Drive the host to the declared state",
	Long: `Applies every resource declaration in order and stops at the first failure.
The path may be a single YAML, JSON, JSONC or TOML file or a cookbook directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		return cli.Converge(ctx, opts, args[0])
	},
}

func init() {
	rootCmd.AddCommand(convergeCmd)
	convergeCmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would change without changing it")
	formatFlag(convergeCmd)
}
