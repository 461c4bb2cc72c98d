// Package version implements the command that prints version information.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chronomap/chronomap-go/internal/conf"
)

// Command creates the version command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chronomap %s\n", settings.Version)
			fmt.Printf("built with %s for %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
