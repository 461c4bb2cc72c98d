package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertDistinct fails when a selection contains duplicate record ids.
func assertDistinct(t *testing.T, records []PhotoRecord) {
	t.Helper()
	seen := make(map[int64]struct{}, len(records))
	for _, rec := range records {
		_, dup := seen[rec.ID]
		require.False(t, dup, "duplicate record id %d in selection", rec.ID)
		seen[rec.ID] = struct{}{}
	}
}

func TestEachStrategyReturnsExactlyNDistinct(t *testing.T) {
	d := NewDiversitySelector(testRNG())
	pool := recordPool(30)
	const n = 8

	strategies := map[string]func() []int{
		strategyTemporal:  func() []int { return d.temporalSpread(pool, n) },
		strategyGeo:       func() []int { return d.geographicSpread(pool, n) },
		strategyRandom:    func() []int { return d.pureRandom(len(pool), n) },
		strategySegmented: func() []int { return d.segmentedMixed(len(pool), n) },
	}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			for range 20 {
				indices := strategy()
				require.Len(t, indices, n)

				seen := make(map[int]struct{}, n)
				for _, idx := range indices {
					require.GreaterOrEqual(t, idx, 0)
					require.Less(t, idx, len(pool))
					_, dup := seen[idx]
					require.False(t, dup, "strategy %s returned duplicate index %d", name, idx)
					seen[idx] = struct{}{}
				}
			}
		})
	}
}

func TestSelectPostconditions(t *testing.T) {
	d := NewDiversitySelector(testRNG())
	pool := recordPool(25)

	// Repeated calls cycle through strategies at random; every result must
	// satisfy the same postcondition.
	for range 40 {
		selected := d.Select(pool, 10)
		require.Len(t, selected, 10)
		assertDistinct(t, selected)
	}
}

func TestSelectClampsToPoolSize(t *testing.T) {
	d := NewDiversitySelector(testRNG())
	pool := recordPool(4)

	for range 10 {
		selected := d.Select(pool, 9)
		require.Len(t, selected, 4, "selection is min(N, poolSize)")
		assertDistinct(t, selected)
	}
}

func TestSelectEdgeCases(t *testing.T) {
	d := NewDiversitySelector(testRNG())

	assert.Nil(t, d.Select(nil, 5))
	assert.Nil(t, d.Select(recordPool(3), 0))

	single := d.Select(recordPool(1), 1)
	require.Len(t, single, 1)
}

func TestHaversine(t *testing.T) {
	paris := LatLon{Lat: 48.8566, Lon: 2.3522}
	london := LatLon{Lat: 51.5074, Lon: -0.1278}

	dist := haversineKm(paris, london)
	assert.InDelta(t, 344, dist, 5, "Paris-London is roughly 344 km")
	assert.Zero(t, haversineKm(paris, paris))
}
