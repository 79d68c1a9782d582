package main

import (
	"context"

	"github.com/aretw0/steward/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves audits and stored reports over HTTP:

  GET  /healthz
  POST /audit          (body: a config document; JSON, YAML or TOML)
  GET  /reports
  GET  /reports/{id}
  GET  /metrics        (Prometheus)

Convergence is not exposed over HTTP.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		return cli.Serve(ctx, opts, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
