package pipeline

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

// selection strategy names, used for logging.
const (
	strategyTemporal  = "temporal-spread"
	strategyGeo       = "geographic-spread"
	strategyRandom    = "pure-random"
	strategySegmented = "segmented-mixed"
)

// geoJitterFactor randomizes the farthest-point strategy so repeated calls
// over the same pool do not return identical sets.
const geoJitterFactor = 0.3

// DiversitySelector picks a diverse subset from a valid pool using one of
// four interchangeable strategies chosen uniformly at random per call.
type DiversitySelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiversitySelector creates a selector. A nil rng gets a time-seeded one.
func NewDiversitySelector(rng *rand.Rand) *DiversitySelector {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>32))
	}
	return &DiversitySelector{rng: rng}
}

// Select returns min(n, len(pool)) distinct records in randomized order.
// The strategy used never leaks into the result ordering.
func (d *DiversitySelector) Select(pool []PhotoRecord, n int) []PhotoRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}

	var indices []int
	var strategy string
	switch d.rng.IntN(4) {
	case 0:
		strategy = strategyTemporal
		indices = d.temporalSpread(pool, n)
	case 1:
		strategy = strategyGeo
		indices = d.geographicSpread(pool, n)
	case 2:
		strategy = strategyRandom
		indices = d.pureRandom(len(pool), n)
	default:
		strategy = strategySegmented
		indices = d.segmentedMixed(len(pool), n)
	}

	// Shuffle so no strategy-specific ordering reaches the caller.
	d.rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	selected := make([]PhotoRecord, len(indices))
	for i, idx := range indices {
		selected[i] = pool[idx]
	}

	serviceLogger.Debug("Diversity selection complete",
		"strategy", strategy,
		"pool_size", len(pool),
		"selected", len(selected))
	return selected
}

// temporalSpread sorts the pool by year and stride-samples across it with a
// small random jitter per stride.
func (d *DiversitySelector) temporalSpread(pool []PhotoRecord, n int) []int {
	byYear := make([]int, len(pool))
	for i := range byYear {
		byYear[i] = i
	}
	sort.Slice(byYear, func(i, j int) bool {
		return pool[byYear[i]].Year < pool[byYear[j]].Year
	})

	stride := len(pool) / n
	if stride < 1 {
		stride = 1
	}

	picked := make(map[int]struct{}, n)
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pos := i*stride + d.rng.IntN(stride)
		if pos >= len(byYear) {
			pos = len(byYear) - 1
		}
		// Probe forward past already-picked positions.
		for {
			if _, dup := picked[pos]; !dup {
				break
			}
			pos = (pos + 1) % len(byYear)
		}
		picked[pos] = struct{}{}
		indices = append(indices, byYear[pos])
	}
	return indices
}

// geographicSpread greedily adds the record maximizing the minimum distance
// to the already-selected set, with multiplicative jitter on the score.
func (d *DiversitySelector) geographicSpread(pool []PhotoRecord, n int) []int {
	remaining := make([]int, len(pool))
	for i := range remaining {
		remaining[i] = i
	}

	first := d.rng.IntN(len(remaining))
	indices := []int{remaining[first]}
	remaining = append(remaining[:first], remaining[first+1:]...)

	for len(indices) < n {
		bestPos := -1
		bestScore := -1.0
		for pos, idx := range remaining {
			minDist := math.MaxFloat64
			for _, sel := range indices {
				dist := haversineKm(pool[idx].Coordinates, pool[sel].Coordinates)
				if dist < minDist {
					minDist = dist
				}
			}
			score := minDist * (1 + d.rng.Float64()*geoJitterFactor)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
		indices = append(indices, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return indices
}

// pureRandom takes the first n of a uniform shuffle.
func (d *DiversitySelector) pureRandom(poolSize, n int) []int {
	perm := d.rng.Perm(poolSize)
	return perm[:n]
}

// segmentedMixed partitions a shuffled pool into n equal segments and picks
// one random element per segment, topping up randomly when segments run
// short.
func (d *DiversitySelector) segmentedMixed(poolSize, n int) []int {
	perm := d.rng.Perm(poolSize)

	segmentSize := poolSize / n
	if segmentSize < 1 {
		segmentSize = 1
	}

	picked := make(map[int]struct{}, n)
	indices := make([]int, 0, n)
	for i := 0; i < n && i*segmentSize < poolSize; i++ {
		start := i * segmentSize
		end := min(start+segmentSize, poolSize)
		pos := start + d.rng.IntN(end-start)
		picked[pos] = struct{}{}
		indices = append(indices, perm[pos])
	}

	// Top up from unpicked positions if segmentation fell short.
	for pos := 0; len(indices) < n && pos < poolSize; pos++ {
		if _, dup := picked[pos]; dup {
			continue
		}
		picked[pos] = struct{}{}
		indices = append(indices, perm[pos])
	}
	return indices
}

// haversineKm computes the great-circle distance between two coordinates.
func haversineKm(a, b LatLon) float64 {
	const earthRadiusKm = 6371.0

	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
