// Package pipeline implements the historical-photo acquisition pipeline:
// retrying search orchestration, candidate aggregation and deduplication,
// metadata extraction, format-validation gating and diverse subset
// selection.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/logging"
)

var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	serviceLogger, closeLogger, err = logging.NewFileLogger("logs/pipeline.log", "pipeline", slog.LevelInfo)
	if err != nil || serviceLogger == nil {
		serviceLogger = logging.NewDiscardLogger("pipeline", slog.LevelInfo)
		closeLogger = func() error { return nil }
	}
}

// LatLon is a WGS84 coordinate pair in signed decimal degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// Metadata carries the descriptive fields of a validated photo record.
type Metadata struct {
	Photographer string
	License      string
	DateCreated  string
	Format       string
	MIMEType     string
}

// PhotoRecord is a fully validated historical photo. Records are immutable
// once returned: Year is within the configured range, Coordinates are
// non-zero and in range, and Format was confirmed supported at emission
// time.
type PhotoRecord struct {
	ID          int64
	URL         string
	Title       string
	Description string
	Year        int
	Coordinates LatLon
	Source      string
	Metadata    Metadata
}

// SearchAttempt holds the expanding parameters for one retry iteration.
type SearchAttempt struct {
	Number           int
	RadiusMeters     int
	PerLocationLimit int
	LocationCount    int
}

// Provider is the content-provider surface the pipeline consumes.
// *commons.Client satisfies it.
type Provider interface {
	GeoSearch(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error)
	CategoryMembers(ctx context.Context, category string, limit int) ([]commons.Candidate, error)
	TextSearch(ctx context.Context, query string, limit, offset int) ([]commons.Candidate, error)
	DetailBatch(ctx context.Context, pageIDs []int64) (map[int64]commons.PageDetail, error)
	BatchLimit() int
}
