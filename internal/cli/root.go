// Package cli provides the command-line interface for deckgenius.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deckgenius/internal/config"
	"deckgenius/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// loadConfig reads the configuration and builds the logger it asks for.
// Command line flags win over the file.
func (o *rootOptions) loadConfig() (*config.Manager, zerolog.Logger, error) {
	bootstrap := logging.NewFromEnv()
	manager := config.NewManager(o.configPath, bootstrap)
	if err := manager.Load(); err != nil {
		return nil, bootstrap, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := manager.Get()
	level, format := cfg.Logging.Level, cfg.Logging.Format
	if o.logLevel != "" {
		level = o.logLevel
	}
	if o.logFormat != "" {
		format = o.logFormat
	}
	return manager, logging.FromSettings(level, format), nil
}

// NewRootCmd creates the root command for deckgenius
func NewRootCmd(version, commit, buildDate string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "deckgenius",
		Short:         "Slide synthesis and playback server",
		Long:          `Serves a slide deck, merges rows from a data feed into a presentation queue and plays generated slides on connected browser surfaces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./deckgenius.{toml,yaml,json})")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format override (console, json)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "deckgenius %s\n", version)
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "built: %s\n", buildDate)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newRenderCmd())

	return rootCmd
}
