package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/conf"
	"github.com/chronomap/chronomap-go/internal/errors"
	"github.com/chronomap/chronomap-go/internal/format"
	"github.com/chronomap/chronomap-go/internal/locations"
)

// fakeProvider implements Provider with pluggable behavior per method.
type fakeProvider struct {
	mu sync.Mutex

	geoSearchFn       func(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error)
	categoryMembersFn func(ctx context.Context, category string, limit int) ([]commons.Candidate, error)
	textSearchFn      func(ctx context.Context, query string, limit, offset int) ([]commons.Candidate, error)
	detailBatchFn     func(ctx context.Context, pageIDs []int64) (map[int64]commons.PageDetail, error)
	batchLimit        int

	geoCalls    atomic.Int32
	detailCalls atomic.Int32
}

func (f *fakeProvider) GeoSearch(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error) {
	f.geoCalls.Add(1)
	if f.geoSearchFn == nil {
		return nil, nil
	}
	return f.geoSearchFn(ctx, lat, lon, radiusMeters, limit)
}

func (f *fakeProvider) CategoryMembers(ctx context.Context, category string, limit int) ([]commons.Candidate, error) {
	if f.categoryMembersFn == nil {
		return nil, nil
	}
	return f.categoryMembersFn(ctx, category, limit)
}

func (f *fakeProvider) TextSearch(ctx context.Context, query string, limit, offset int) ([]commons.Candidate, error) {
	if f.textSearchFn == nil {
		return nil, nil
	}
	return f.textSearchFn(ctx, query, limit, offset)
}

func (f *fakeProvider) DetailBatch(ctx context.Context, pageIDs []int64) (map[int64]commons.PageDetail, error) {
	f.detailCalls.Add(1)
	if f.detailBatchFn == nil {
		return map[int64]commons.PageDetail{}, nil
	}
	return f.detailBatchFn(ctx, pageIDs)
}

func (f *fakeProvider) BatchLimit() int {
	if f.batchLimit <= 0 {
		return 50
	}
	return f.batchLimit
}

// fakeValidator implements format.Validator with a pluggable per-request
// decision and a batch call counter.
type fakeValidator struct {
	verdictFn  func(req format.Request) format.Verdict
	batchErr   error
	batchCalls atomic.Int32
}

func (f *fakeValidator) Validate(ctx context.Context, url, mimeHint string, metadataHint map[string]string) (format.Verdict, error) {
	verdicts, err := f.ValidateBatch(ctx, []format.Request{{URL: url, MIMEHint: mimeHint, MetadataHint: metadataHint}})
	if err != nil {
		return format.Verdict{}, err
	}
	return verdicts[0], nil
}

func (f *fakeValidator) ValidateBatch(ctx context.Context, requests []format.Request) ([]format.Verdict, error) {
	f.batchCalls.Add(1)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	verdicts := make([]format.Verdict, len(requests))
	for i, req := range requests {
		if f.verdictFn != nil {
			verdicts[i] = f.verdictFn(req)
		} else {
			verdicts[i] = format.Verdict{IsValid: true, DetectedFormat: "jpeg", DetectedMIMEType: "image/jpeg"}
		}
	}
	return verdicts, nil
}

// acceptAllValidator returns a validator accepting everything as jpeg.
func acceptAllValidator() *fakeValidator {
	return &fakeValidator{}
}

// rejectAllValidator returns a validator rejecting everything.
func rejectAllValidator() *fakeValidator {
	return &fakeValidator{
		verdictFn: func(req format.Request) format.Verdict {
			return format.Verdict{IsValid: false, RejectionReason: "rejected in test"}
		},
	}
}

// transportError builds a network-categorized error like the commons client
// produces for transport failures.
func transportError(msg string) error {
	return errors.Newf("%s", msg).
		Component("commons").
		Category(errors.CategoryNetwork).
		Build()
}

// usableDetail returns a PageDetail that passes metadata extraction.
func usableDetail(pageID int64, year int) commons.PageDetail {
	return commons.PageDetail{
		PageID: pageID,
		Title:  fmt.Sprintf("File:Test %d.jpg", pageID),
		URL:    fmt.Sprintf("http://upload.test/%d.jpg", pageID),
		MIME:   "image/jpeg",
		ExtMetadata: map[string]string{
			"DateTimeOriginal": fmt.Sprintf("%d-06-15", year),
			"GPSLatitude":      "48.8566",
			"GPSLongitude":     "2.3522",
			"LicenseShortName": "CC BY-SA 4.0",
			"Artist":           "Jane Doe",
		},
	}
}

// candidateIDs turns ids into bare candidates.
func candidateIDs(ids ...int64) []commons.Candidate {
	cands := make([]commons.Candidate, len(ids))
	for i, id := range ids {
		cands[i] = commons.Candidate{PageID: id, Title: fmt.Sprintf("File:Test %d.jpg", id)}
	}
	return cands
}

// testSearchConfig returns a small, deterministic search configuration.
func testSearchConfig() conf.SearchConfig {
	return conf.SearchConfig{
		MaxRetries:       2,
		BaseRadiusMeters: 1000,
		RadiusMultiplier: 2.0,
		BaseLimit:        10,
		LimitMultiplier:  1.5,
		LocationCap:      5,
		MinYear:          1900,
	}
}

// testCatalog loads the embedded city catalog.
func testCatalog(t *testing.T) *locations.Catalog {
	t.Helper()
	catalog, err := locations.Default()
	require.NoError(t, err)
	return catalog
}

// testRNG returns a deterministic rng.
func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(42, 1))
}

// recordPool builds a pool of n valid records spread over years and space.
func recordPool(n int) []PhotoRecord {
	pool := make([]PhotoRecord, n)
	for i := range n {
		pool[i] = PhotoRecord{
			ID:    int64(i + 1),
			URL:   fmt.Sprintf("http://upload.test/%d.jpg", i+1),
			Title: fmt.Sprintf("Test %d", i+1),
			Year:  1900 + (i*7)%120,
			Coordinates: LatLon{
				Lat: -60 + float64(i*13%120),
				Lon: -170 + float64(i*29%340),
			},
			Source: "commons",
			Metadata: Metadata{
				License:  "CC BY-SA 4.0",
				Format:   "jpeg",
				MIMEType: "image/jpeg",
			},
		}
	}
	return pool
}
