package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zyrolabs/zyro/internal/ui"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "zyrod <command>",
	Short: "Zyro project management service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		slog.SetDefault(slog.New(newLogHandler()))
	},
}

// newLogHandler picks text output for interactive runs and JSON when
// stderr is captured by a log collector.
func newLogHandler() slog.Handler {
	if ui.IsTerminal(os.Stderr) {
		return slog.NewTextHandler(os.Stderr, nil)
	}
	return slog.NewJSONHandler(os.Stderr, nil)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
