package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "gastobot",
		Short: "gastobot: WhatsApp expense tracker",
		Long:  "gastobot ingests WhatsApp messages, extracts expense data with Gemini and records it in Google Sheets and Drive.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "gastobot.yaml", "path to the YAML config file")

	root.AddCommand(serveCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gastobot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gastobot v%s\n", version)
		},
	}
}

// levelFromString maps the configured log level onto slog.
func levelFromString(s string) slog.Level {
	switch s {
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
