// Package cli provides the command-line interface for legalchat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/legalchat/internal/app"
	"github.com/raphaelgruber/legalchat/internal/client"
	"github.com/raphaelgruber/legalchat/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error

	// Lazy-initialized local engine
	localApp *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "legalchat",
	Short: "Bilingual legal-assistant conversation engine",
	Long: `Legalchat answers legal questions over a chat transport in English and Urdu.

Messages are classified, routed to a reply shape, researched when they are
legal questions, and delivered as text, voice, or a rendered document.

Commands run against a local engine built from LEGALCHAT_* environment
variables, or against a running legalchat-server with --server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if localApp != nil {
			if err := localApp.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// remote reports whether commands should talk to a server instead of a local engine.
func remote() bool {
	return serverURL != ""
}

// getApp builds the local engine on first use.
func getApp(ctx context.Context) (*app.App, error) {
	if localApp != nil {
		return localApp, nil
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	localApp = a
	return a, nil
}

// getClient returns a client for the configured server.
func getClient() *client.Client {
	return client.New(serverURL, cfg.AppSecret)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "legalchat-server URL (default: local engine)")

	// Add subcommands
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(lexiconCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "legalchat %s\n", Version)
	},
}

