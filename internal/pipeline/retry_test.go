package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/errors"
)

// newTestController wires orchestrator, aggregator and controller over the
// given fakes with the deterministic test config (MaxRetries = 2).
func newTestController(t *testing.T, provider *fakeProvider, validator *fakeValidator) *RetryController {
	t.Helper()
	cfg := testSearchConfig()
	orchestrator := NewOrchestrator(provider, testCatalog(t), cfg, testRNG())
	aggregator := NewAggregator(provider, validator, newTestExtractor(), nil)
	return NewRetryController(orchestrator, aggregator, cfg.MaxRetries, nil)
}

// healthyProvider yields distinct usable candidates per geo location.
func healthyProvider(perLocation []int64) *fakeProvider {
	return &fakeProvider{
		batchLimit: 50,
		geoSearchFn: func(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error) {
			return candidateIDs(perLocation...), nil
		},
		detailBatchFn: func(ctx context.Context, pageIDs []int64) (map[int64]commons.PageDetail, error) {
			details := make(map[int64]commons.PageDetail, len(pageIDs))
			for _, id := range pageIDs {
				details[id] = usableDetail(id, 1950)
			}
			return details, nil
		},
	}
}

func TestRunSucceedsOnFirstAttempt(t *testing.T) {
	provider := healthyProvider([]int64{1, 2, 3})
	validator := acceptAllValidator()
	ctrl := newTestController(t, provider, validator)

	records, err := ctrl.Run(context.Background(), 3, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), 3)

	// One attempt: all candidates dedupe into one chunk, so exactly one
	// detail call and one batched validation call.
	assert.Equal(t, int32(1), provider.detailCalls.Load())
	assert.Equal(t, int32(1), validator.batchCalls.Load())
	// Attempt 0 uses count*(1+0) = 3 geo locations and no more.
	assert.Equal(t, int32(3), provider.geoCalls.Load())
}

func TestRunExhaustsWhenValidatorRejectsEverything(t *testing.T) {
	provider := healthyProvider([]int64{1, 2, 3, 4, 5, 6})
	ctrl := newTestController(t, provider, rejectAllValidator())

	_, err := ctrl.Run(context.Background(), 5, "")
	require.Error(t, err)

	var insufficient *InsufficientCandidatesError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 5, insufficient.RequestedCount)
	assert.Equal(t, 3, insufficient.AttemptsUsed, "MaxRetries=2 means 3 attempts total")
}

func TestRunPartialSuccessReturnsShortfallWithoutError(t *testing.T) {
	// Only one candidate ever exists; all attempts find the same one.
	provider := healthyProvider([]int64{7})
	ctrl := newTestController(t, provider, acceptAllValidator())

	records, err := ctrl.Run(context.Background(), 5, "")
	require.NoError(t, err, "partial success is not an error")
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].ID)
}

func TestRunTransportExhaustionIsDistinctErrorKind(t *testing.T) {
	provider := &fakeProvider{
		batchLimit: 50,
		geoSearchFn: func(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error) {
			return nil, transportError("provider unreachable")
		},
	}
	ctrl := newTestController(t, provider, acceptAllValidator())

	_, err := ctrl.Run(context.Background(), 3, "")
	require.Error(t, err)

	var transport *FetchTransportError
	require.True(t, errors.As(err, &transport),
		"all-geo transport failure must raise FetchTransportError, not InsufficientCandidatesError")
	assert.Equal(t, 3, transport.AttemptsUsed)
	assert.True(t, errors.IsCategory(transport.Cause, errors.CategoryNetwork))

	var insufficient *InsufficientCandidatesError
	assert.False(t, errors.As(err, &insufficient))
}

func TestRunAccumulatesAcrossAttempts(t *testing.T) {
	// Attempt 0 surfaces candidate 1 only; later attempts surface 1 and 2.
	attempt := 0
	provider := &fakeProvider{
		batchLimit: 50,
		detailBatchFn: func(ctx context.Context, pageIDs []int64) (map[int64]commons.PageDetail, error) {
			details := make(map[int64]commons.PageDetail, len(pageIDs))
			for _, id := range pageIDs {
				details[id] = usableDetail(id, 1950)
			}
			return details, nil
		},
	}
	provider.textSearchFn = func(ctx context.Context, query string, limit, offset int) ([]commons.Candidate, error) {
		attempt++
		if attempt == 1 {
			return candidateIDs(1), nil
		}
		return candidateIDs(1, 2), nil
	}
	ctrl := newTestController(t, provider, acceptAllValidator())

	records, err := ctrl.Run(context.Background(), 2, "")
	require.NoError(t, err)
	require.Len(t, records, 2, "records found on earlier attempts count toward later shortfalls")
	assertDistinct(t, records)
}
