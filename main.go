package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	logLevel = "info"
	levelVar = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "proof",
	Short: "Phone-call training simulator for sales and project managers",
	Long: `Proof puts a trainee on a simulated client call. An LLM plays a generated
client persona with a hidden goal, and a second model grades the finished
call into a scorecard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		levelVar.Set(level)
		slog.Debug("debug logging enabled")
		return nil
	},
}

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	rootCmd.AddCommand(
		NewServeCommand(),
		NewCallCommand(),
		NewScenarioCommand(),
	)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug,info,warn,error)")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("could not execute root command", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("cannot parse log-level %q: %w", s, err)
	}
	return level, nil
}
