package main

import (
	"github.com/aretw0/steward/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-path>",
	Short: "Parse and validate a config without touching the host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(cmd.Context(), opts, args[0])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
