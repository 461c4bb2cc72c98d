package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chronomap/chronomap-go/cmd/fetch"
	"github.com/chronomap/chronomap-go/cmd/seeds"
	"github.com/chronomap/chronomap-go/cmd/version"
	"github.com/chronomap/chronomap-go/internal/conf"
	"github.com/chronomap/chronomap-go/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chronomap",
		Short: "ChronoMap historical photo pipeline CLI",
	}

	rootCmd.PersistentFlags().BoolVar(&settings.Debug, "debug", settings.Debug, "Enable debug output")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
	}

	rootCmd.AddCommand(
		fetch.Command(settings),
		seeds.Command(),
		version.Command(settings),
	)

	return rootCmd
}
