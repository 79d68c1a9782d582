package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/steward"
	"github.com/aretw0/steward/internal/cli"
	"github.com/spf13/cobra"
)

// Keys sealing stored reports are read from the environment, never from flags.
const (
	EnvReportKey          = "STEWARD_REPORT_KEY"
	EnvReportFallbackKeys = "STEWARD_REPORT_FALLBACK_KEYS"
)

// opts is filled from the persistent flags before any command runs.
var opts = cli.Options{
	Stdout: os.Stdout,
	Stderr: os.Stderr,
}

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Steward converges hosts to a declared state and audits them",
	Long: `Steward reads declarations of packages, services and files, drives the host
to match them, and evaluates compliance controls against the host's live state.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		opts.ReportKey = os.Getenv(EnvReportKey)
		opts.ReportFallbackKeys = os.Getenv(EnvReportFallbackKeys)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, cli.ErrAuditFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging on stderr")
	flags.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text or json")

	flags.StringVar(&opts.Store, "store", cli.StoreMemory, "Report store: memory, file or redis")
	flags.StringVar(&opts.StoreDir, "store-dir", "", "Directory for the file store (default .steward/reports)")
	flags.StringVar(&opts.RedisAddr, "redis-addr", "localhost:6379", "Redis address for the redis store and lock")
	flags.StringVar(&opts.RedisPassword, "redis-password", "", "Redis password")
	flags.IntVar(&opts.RedisDB, "redis-db", 0, "Redis database number")
	flags.DurationVar(&opts.ReportTTL, "report-ttl", 0, "Expire stored reports after this long (redis only, 0 keeps them)")
	flags.BoolVar(&opts.LockRedis, "lock-redis", false, "Serialize runs against the host with a Redis lock")
	flags.DurationVar(&opts.LockTTL, "lock-ttl", steward.DefaultLockTTL, "Lifetime of the host lock")

	flags.StringVar(&opts.Simulate, "simulate", "", "Run against an in-memory host seeded from this facts file")
	flags.StringVar(&opts.Commands, "commands", "", "YAML or JSON file overriding how host commands are invoked")
	flags.StringVar(&opts.Host, "host", "", "Host name recorded in reports (default: the machine's hostname)")
}

// formatFlag registers --format on commands that print reports.
func formatFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "Output format: text, markdown or json")
}
