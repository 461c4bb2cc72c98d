package pipeline

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/conf"
	"github.com/chronomap/chronomap-go/internal/errors"
	"github.com/chronomap/chronomap-go/internal/locations"
)

// searchTerms feed the free-text strategy. Each attempt picks one at random
// so repeated attempts do not keep surfacing the same failure set.
var searchTerms = []string{
	"historical photograph",
	"vintage photograph",
	"archive photo",
	"old city view",
	"street scene history",
}

// maxKeywordOffset bounds the random offset applied to free-text searches.
const maxKeywordOffset = 200

// Orchestrator fans out the concurrent sub-searches of one attempt.
type Orchestrator struct {
	provider Provider
	catalog  *locations.Catalog
	cfg      conf.SearchConfig

	// mu guards rng: Search runs concurrently when callers fetch
	// different request shapes at the same time.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewOrchestrator creates an Orchestrator. A nil rng gets a time-seeded one.
func NewOrchestrator(provider Provider, catalog *locations.Catalog, cfg conf.SearchConfig, rng *rand.Rand) *Orchestrator {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>32))
	}
	return &Orchestrator{
		provider: provider,
		catalog:  catalog,
		cfg:      cfg,
		rng:      rng,
	}
}

// AttemptParams computes the expanding search parameters for one attempt.
func (o *Orchestrator) AttemptParams(count, attemptNumber int) SearchAttempt {
	radius := float64(o.cfg.BaseRadiusMeters) * math.Pow(o.cfg.RadiusMultiplier, float64(attemptNumber))
	limit := float64(o.cfg.BaseLimit) * math.Pow(o.cfg.LimitMultiplier, float64(attemptNumber))
	locationCount := min(count*(1+attemptNumber), o.cfg.LocationCap)

	return SearchAttempt{
		Number:           attemptNumber,
		RadiusMeters:     int(radius),
		PerLocationLimit: int(limit),
		LocationCount:    locationCount,
	}
}

// subResult is the outcome of one sub-search.
type subResult struct {
	candidates []commons.Candidate
	geo        bool
	err        error
}

// Search runs one attempt's sub-searches concurrently: geo-proximity over
// randomly chosen seed locations, category membership when a category is
// set, and a randomized free-text search. Every sub-search catches its own
// error and degrades to an empty result.
//
// A non-nil geoFailure reports that every geo location failed at the
// transport level, carrying the last such error; the RetryController uses it
// to tell network exhaustion apart from validation starvation.
func (o *Orchestrator) Search(ctx context.Context, category string, attempt SearchAttempt) (candidates []commons.Candidate, geoFailure error) {
	logger := serviceLogger.With(
		"attempt", attempt.Number,
		"radius_m", attempt.RadiusMeters,
		"per_location_limit", attempt.PerLocationLimit,
		"location_count", attempt.LocationCount)

	// All randomness is drawn up front under the lock; the rng is not safe
	// for concurrent use and Search may run concurrently with itself.
	o.mu.Lock()
	seeds := o.catalog.RandomSubset(attempt.LocationCount, o.rng)
	keywordTerm := searchTerms[o.rng.IntN(len(searchTerms))]
	keywordOffset := o.rng.IntN(maxKeywordOffset)
	o.mu.Unlock()

	subSearches := len(seeds) + 1
	if category != "" {
		subSearches++
	}
	results := make(chan subResult, subSearches)

	var wg sync.WaitGroup
	for _, seed := range seeds {
		wg.Add(1)
		go func(seed locations.City) {
			defer wg.Done()
			cands, err := o.provider.GeoSearch(ctx, seed.Lat, seed.Lon, attempt.RadiusMeters, attempt.PerLocationLimit)
			if err != nil {
				logger.Warn("Geo sub-search failed, contributing no candidates",
					"city", seed.Name, "error", err)
				results <- subResult{geo: true, err: err}
				return
			}
			results <- subResult{candidates: cands, geo: true}
		}(seed)
	}

	if category != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cands, err := o.provider.CategoryMembers(ctx, category, attempt.PerLocationLimit)
			if err != nil {
				logger.Warn("Category sub-search failed, contributing no candidates",
					"category", category, "error", err)
				results <- subResult{err: err}
				return
			}
			results <- subResult{candidates: cands}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		cands, err := o.provider.TextSearch(ctx, keywordTerm, attempt.PerLocationLimit, keywordOffset)
		if err != nil {
			logger.Warn("Keyword sub-search failed, contributing no candidates",
				"term", keywordTerm, "offset", keywordOffset, "error", err)
			results <- subResult{err: err}
			return
		}
		results <- subResult{candidates: cands}
	}()

	wg.Wait()
	close(results)

	geoTotal := 0
	geoTransportFailures := 0
	var lastGeoErr error
	for res := range results {
		if res.geo {
			geoTotal++
			if res.err != nil && errors.IsCategory(res.err, errors.CategoryNetwork) {
				geoTransportFailures++
				lastGeoErr = res.err
			}
		}
		candidates = append(candidates, res.candidates...)
	}

	if geoTotal > 0 && geoTransportFailures == geoTotal {
		geoFailure = lastGeoErr
	}

	logger.Debug("Attempt sub-searches joined",
		"candidates", len(candidates),
		"geo_searches", geoTotal,
		"geo_transport_failures", geoTransportFailures)
	return candidates, geoFailure
}
