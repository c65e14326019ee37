// Package cmd implements the CLI commands for multiview.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kikootwo/multiview/internal/config"
	"github.com/kikootwo/multiview/internal/version"
)

// cfgFile holds the config file path from the --config flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "multiview",
	Short:   "Multi-stream IPTV layout compositor",
	Version: version.Short(),
	Long: `multiview composites several IPTV channels from an M3U catalog into a
single live picture-in-picture or grid layout and serves the result as one
continuous MPEG-TS stream, starting and stopping the underlying ffmpeg
process on demand.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./multiview.yaml, /etc/multiview, $HOME/.multiview)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format override (json, text)")
}

// initLogging configures slog.Default() from the layered configuration,
// then applies the --log-level/--log-format flags on top when the caller
// explicitly set them. Priority order, highest to lowest: CLI flags,
// environment variables, config file, built-in defaults.
func initLogging() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config for logging setup: %w", err)
	}

	level := strings.ToLower(cfg.Logging.Level)
	format := strings.ToLower(cfg.Logging.Format)

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
	if level == "warning" {
		level = "warn"
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: cfg.Logging.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.Logging.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.Logging.TimeFormat))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With(slog.String("app", "multiview")))
	return nil
}

// parseLevel converts a string log level to slog.Level, defaulting to info
// for anything unrecognized.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
