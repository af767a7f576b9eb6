// Package cli provides the command-line interface for the Scrapouille
// terminal dashboard.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/scrapouille/scrapouille/internal/client"
	"github.com/scrapouille/scrapouille/internal/config"
	"github.com/spf13/cobra"
)

func newNopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	apiURL  string

	// Global config, logger and API client, wired in PersistentPreRunE.
	cfg        config.Config
	logger     = newNopLogger()
	logCleanup = func() error { return nil }
	apiClient  *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scrapouille",
	Short: "Terminal dashboard for AI-powered web scraping",
	Long: `Scrapouille is a terminal dashboard for an AI-powered content
extraction service. Submit a single URL or a batch of URLs with an
extraction prompt, watch progress live, and review aggregated results.

The extraction work itself runs on the remote Scrapouille API; this
dashboard schedules the calls, bounds batch concurrency, and keeps a
local history of every scrape.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "templates" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel, verbose)

		endpoint := cfg.APIURL
		if apiURL != "" {
			endpoint = apiURL
		}
		apiClient = client.New(endpoint, client.WithTimeout(cfg.RequestTimeout))

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := logCleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr as well as the log file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "extraction API endpoint (overrides config)")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(templatesCmd)
}
