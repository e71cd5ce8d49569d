// Package cmd provides the parley command line.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// =============================================================================
// Global Flags
// =============================================================================

var (
	logLevel    string
	offlineMode bool
	userID      string
	projectRoot string

	// level is shared with the handler so config can adjust it after load.
	level = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - a conversational assistant core",
	Long: `Parley routes each message to a specialized agent (general, research,
task or home), runs skills on their behalf, remembers what users tell it,
and keeps working offline by answering locally or queueing for later.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	flags.BoolVar(&offlineMode, "offline", false, "start with connectivity marked as unavailable")
	flags.StringVarP(&userID, "user", "u", "", "user id for memory; empty uses memory.default_user or a guest session")
	flags.StringVar(&projectRoot, "project", ".", "project root containing .parley/")
}

func Execute() error {
	return rootCmd.Execute()
}

func setupLogging(cmd *cobra.Command) error {
	level.Set(slog.LevelWarn)
	if logLevel != "" {
		parsed, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		level.Set(parsed)
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

// applyConfigLevel uses log.level unless --log-level was given.
func applyConfigLevel(configured string) {
	if logLevel != "" {
		return
	}
	if parsed, err := parseLevel(configured); err == nil {
		level.Set(parsed)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
