// Package seeds implements the command that lists the embedded seed
// locations used to anchor geographic searches.
package seeds

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chronomap/chronomap-go/internal/locations"
)

// Command creates the seeds command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "seeds",
		Short: "List the embedded seed locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := locations.Default()
			if err != nil {
				return fmt.Errorf("loading seed locations: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOUNTRY\tLAT\tLON")
			for _, city := range catalog.All() {
				fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\n", city.Name, city.Country, city.Lat, city.Lon)
			}
			return w.Flush()
		},
	}
}
