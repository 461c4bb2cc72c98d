package pipeline

import (
	"context"
	"fmt"

	"github.com/chronomap/chronomap-go/internal/cache"
	"github.com/chronomap/chronomap-go/internal/conf"
	"github.com/chronomap/chronomap-go/internal/format"
	"github.com/chronomap/chronomap-go/internal/locations"
	"github.com/chronomap/chronomap-go/internal/observability/metrics"
)

// Service is the pipeline's entry point for callers. It memoizes the valid
// pool per request shape and applies diversity selection per call, so
// repeated identical requests inside the TTL window are served without
// re-fetching while still varying the returned subset.
type Service struct {
	pool     *cache.Cache[[]PhotoRecord]
	retry    *RetryController
	selector *DiversitySelector
	metrics  *metrics.PipelineMetrics
}

// NewService wires the full pipeline. The metrics argument may be nil.
func NewService(provider Provider, validator format.Validator, catalog *locations.Catalog, settings *conf.Settings, m *metrics.PipelineMetrics) *Service {
	extractor := NewExtractor(settings.Search.MinYear)
	orchestrator := NewOrchestrator(provider, catalog, settings.Search, nil)
	aggregator := NewAggregator(provider, validator, extractor, m)
	retry := NewRetryController(orchestrator, aggregator, settings.Search.MaxRetries, m)

	return &Service{
		pool:     cache.New[[]PhotoRecord](settings.Cache.TTL, settings.Cache.MaxSize, serviceLogger),
		retry:    retry,
		selector: NewDiversitySelector(nil),
		metrics:  m,
	}
}

// FetchPhotos returns up to count validated, diverse photo records for the
// given category filter (empty means no filter).
//
// The attempt pipeline runs at most once per request shape within the cache
// TTL; concurrent identical requests coalesce onto one run. forceRefresh
// bypasses a live cache entry and re-fetches, still storing the fresh pool.
// The result length is exactly count on success and may be smaller on a
// partial success; errors are InsufficientCandidatesError or
// FetchTransportError.
func (s *Service) FetchPhotos(ctx context.Context, count int, category string, forceRefresh bool) ([]PhotoRecord, error) {
	key := fmt.Sprintf("photos|%d|%s", count, category)

	producer := func(ctx context.Context) ([]PhotoRecord, error) {
		return s.retry.Run(ctx, count, category)
	}

	var pool []PhotoRecord
	var err error
	if forceRefresh {
		pool, err = s.pool.Refresh(ctx, key, producer)
	} else {
		pool, err = s.pool.GetOrSet(ctx, key, producer)
	}
	if err != nil {
		return nil, err
	}

	selected := s.selector.Select(pool, count)
	if s.metrics != nil {
		s.metrics.ObserveRecordsReturned(len(selected))
	}
	return selected, nil
}

// CacheStats exposes the pool cache's counters.
func (s *Service) CacheStats() cache.Stats {
	return s.pool.Stats()
}
