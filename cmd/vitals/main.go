package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vitals/vitals/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "vitals",
		Short:        "Synthetic vitals simulator and FHIR Observation processor",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(consumeCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger: JSON by default, console output in
// development. An unknown LOG_LEVEL falls back to info.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "vitals").Logger()
}
