package main

import (
	"github.com/aretw0/steward/internal/cli"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Read stored runs",
	Long:  `Lists and shows runs persisted by the file or redis store.`,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListReports(cmd.Context(), opts)
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ShowReport(cmd.Context(), opts, args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd, reportShowCmd)
	formatFlag(reportListCmd)
	formatFlag(reportShowCmd)
}
