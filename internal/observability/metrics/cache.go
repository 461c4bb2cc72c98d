package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics contains all Prometheus metrics for the memoizing cache.
type CacheMetrics struct {
	CacheSize   prometheus.Gauge
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	Evictions   prometheus.Counter
	registry    *prometheus.Registry
}

// NewCacheMetrics creates a new instance of CacheMetrics registered on the
// given registry.
func NewCacheMetrics(registry *prometheus.Registry) (*CacheMetrics, error) {
	m := &CacheMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register cache metrics: %w", err)
	}
	return m, nil
}

func (m *CacheMetrics) initMetrics() {
	m.CacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "photo_cache_entries",
		Help: "Current number of entries in the photo cache.",
	})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photo_cache_hits_total",
		Help: "Total number of cache hits.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photo_cache_misses_total",
		Help: "Total number of cache misses.",
	})

	m.Evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photo_cache_evictions_total",
		Help: "Total number of entries evicted to honor the cache size limit.",
	})
}

// SetCacheSize updates the current entry count of the cache.
func (m *CacheMetrics) SetCacheSize(entries float64) {
	m.CacheSize.Set(entries)
}

// IncrementCacheHits increases the cache hit counter by one.
func (m *CacheMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses increases the cache miss counter by one.
func (m *CacheMetrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// IncrementEvictions increases the eviction counter by one.
func (m *CacheMetrics) IncrementEvictions() {
	m.Evictions.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *CacheMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.CacheSize
	ch <- m.CacheHits
	ch <- m.CacheMisses
	ch <- m.Evictions
}

// Describe implements the prometheus.Collector interface.
func (m *CacheMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.CacheSize.Desc()
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
	ch <- m.Evictions.Desc()
}
