package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagedeck/pagedeck/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	traceFile    string
	verbose      bool

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "pagedeck",
	Short: "Turn document pages into structured question sets and vocabulary decks",
	Long: `pagedeck converts a page range of a PDF (plus optional hint images) into
schema-conformant question groups or vocabulary flashcard decks using a
generative model.

The pipeline includes:
  - Hint image classification by question type
  - Page analysis mapping each page to the questions it contains
  - Grouping of questions that continue across pages
  - Per-type structured extraction with response caching and retries`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pagedeck/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pagedeck home directory (default: ~/.pagedeck)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format for command results: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&traceFile, "trace", "", "append every model call to this JSONL file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	// Set up logging and validate flags before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if outputFormat != string(outputYAML) && outputFormat != string(outputJSON) {
			return fmt.Errorf("unknown output format %q (want yaml or json)", outputFormat)
		}
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	}

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(versionCmd)
}
