package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor   bool
	jsonOut   bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "tenderscope",
	Short: "Procurement tender ingestion, data-quality monitoring and semantic search",
	Long: `tenderscope ingests procurement tenders from CSV files, cleans and
deduplicates them, validates data quality, and serves semantic search over
the result.

Run "tenderscope serve" to start the HTTP API. The other commands talk to
the running server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("tenderscope version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON responses")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default: from config)")

	rootCmd.AddCommand(
		serveCmd,
		mcpCmd,
		ingestCmd,
		searchCmd,
		healthCmd,
		validateCmd,
		qualityCmd,
		tendersCmd,
		resetCmd,
		configCmd,
		versionCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
