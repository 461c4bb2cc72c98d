// Package fetch implements the command that runs the photo acquisition
// pipeline and prints the resulting records.
package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/conf"
	"github.com/chronomap/chronomap-go/internal/format"
	"github.com/chronomap/chronomap-go/internal/locations"
	"github.com/chronomap/chronomap-go/internal/observability/metrics"
	"github.com/chronomap/chronomap-go/internal/pipeline"
)

// Command creates the fetch command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		count        int
		category     string
		forceRefresh bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch validated historical photo records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			catalog, err := locations.Default()
			if err != nil {
				return fmt.Errorf("loading seed locations: %w", err)
			}

			registry := prometheus.NewRegistry()
			providerMetrics, err := metrics.NewProviderMetrics(registry)
			if err != nil {
				return err
			}
			pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
			if err != nil {
				return err
			}

			client, err := commons.NewClient(nil, providerMetrics)
			if err != nil {
				return fmt.Errorf("creating provider client: %w", err)
			}
			defer client.Close()

			svc := pipeline.NewService(client, format.NewHeuristicValidator(), catalog, settings, pipelineMetrics)

			records, err := svc.FetchPhotos(ctx, count, category, forceRefresh)
			if err != nil {
				return err
			}

			if len(records) < count {
				fmt.Fprintf(os.Stderr, "warning: found %d of %d requested records\n", len(records), count)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "YEAR\tTITLE\tLAT\tLON\tLICENSE\tURL")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%s\t%s\n",
					rec.Year, rec.Title, rec.Coordinates.Lat, rec.Coordinates.Lon,
					rec.Metadata.License, rec.URL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of photo records to fetch")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Restrict results to a provider category")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "Bypass the cache and re-fetch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}
