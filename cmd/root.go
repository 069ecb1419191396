package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "testimony-api",
	Short: "Testimony API server and tools",
	Long: `Testimony API - transcription and search for recorded church testimonies

Uploaded recordings are fingerprinted to catch duplicates, stored, transcribed
by a background worker pool, summarized with a versioned prompt and indexed
for semantic search.

Features:
  • Upload API with duplicate detection per origin
  • Retrying transcription workers with pollable job status
  • Versioned summary prompts and re-summarization
  • Chunked transcript embeddings and semantic search
  • Inbox folder watcher and spreadsheet export`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd returns the root command (exported for testing)
func NewRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "settings file (default ./config/settings.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "enable JSON formatted logs")
}

// loadConfig reads settings and builds the process logger. Flags given on
// the command line win over the logging section of the config.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		config.SetConfigFile(path)
	}

	if err := config.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing config: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		level = f.Value.String()
	}
	format := cfg.Logging.Format
	if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs {
		format = "json"
	} else if f := cmd.Flags().Lookup("json-logs"); f != nil && f.Changed {
		format = "text"
	}

	log := logger.NewWithOutput(level, format, cmd.ErrOrStderr())
	logger.SetDefault(log)
	return cfg, log, nil
}
