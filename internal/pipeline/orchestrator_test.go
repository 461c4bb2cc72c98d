package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronomap/chronomap-go/internal/commons"
	"github.com/chronomap/chronomap-go/internal/errors"
)

func TestAttemptParamsExpansion(t *testing.T) {
	o := NewOrchestrator(&fakeProvider{}, testCatalog(t), testSearchConfig(), testRNG())

	p0 := o.AttemptParams(3, 0)
	assert.Equal(t, 1000, p0.RadiusMeters)
	assert.Equal(t, 10, p0.PerLocationLimit)
	assert.Equal(t, 3, p0.LocationCount)

	p1 := o.AttemptParams(3, 1)
	assert.Equal(t, 2000, p1.RadiusMeters)
	assert.Equal(t, 15, p1.PerLocationLimit)
	assert.Equal(t, 5, p1.LocationCount, "location count is capped")

	p2 := o.AttemptParams(3, 2)
	assert.Equal(t, 4000, p2.RadiusMeters)
	assert.Equal(t, 22, p2.PerLocationLimit)
	assert.Equal(t, 5, p2.LocationCount)
}

func TestSearchFansOutAndCollects(t *testing.T) {
	provider := &fakeProvider{
		geoSearchFn: func(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error) {
			return candidateIDs(1), nil
		},
		categoryMembersFn: func(ctx context.Context, category string, limit int) ([]commons.Candidate, error) {
			assert.Equal(t, "Historical photographs", category)
			return candidateIDs(2), nil
		},
		textSearchFn: func(ctx context.Context, query string, limit, offset int) ([]commons.Candidate, error) {
			return candidateIDs(3), nil
		},
	}
	o := NewOrchestrator(provider, testCatalog(t), testSearchConfig(), testRNG())

	attempt := o.AttemptParams(2, 0)
	candidates, geoFailure := o.Search(context.Background(), "Historical photographs", attempt)

	require.NoError(t, geoFailure)
	// 2 geo locations contributing 1 each, plus category and keyword.
	assert.Len(t, candidates, 4)
	assert.Equal(t, int32(2), provider.geoCalls.Load())
}

func TestSearchSkipsCategoryWhenUnset(t *testing.T) {
	categoryCalled := false
	provider := &fakeProvider{
		categoryMembersFn: func(ctx context.Context, category string, limit int) ([]commons.Candidate, error) {
			categoryCalled = true
			return nil, nil
		},
	}
	o := NewOrchestrator(provider, testCatalog(t), testSearchConfig(), testRNG())

	_, _ = o.Search(context.Background(), "", o.AttemptParams(2, 0))
	assert.False(t, categoryCalled)
}

func TestSearchDegradesFailedSubSearches(t *testing.T) {
	provider := &fakeProvider{
		geoSearchFn: func(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error) {
			return candidateIDs(1, 2), nil
		},
		textSearchFn: func(ctx context.Context, query string, limit, offset int) ([]commons.Candidate, error) {
			return nil, transportError("text search down")
		},
	}
	o := NewOrchestrator(provider, testCatalog(t), testSearchConfig(), testRNG())

	attempt := o.AttemptParams(1, 0)
	candidates, geoFailure := o.Search(context.Background(), "", attempt)

	require.NoError(t, geoFailure, "keyword failure alone is not a geo transport failure")
	assert.Len(t, candidates, 2, "a failed sub-search contributes nothing but never aborts siblings")
}

func TestSearchReportsAllGeoTransportFailures(t *testing.T) {
	provider := &fakeProvider{
		geoSearchFn: func(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error) {
			return nil, transportError("network down")
		},
	}
	o := NewOrchestrator(provider, testCatalog(t), testSearchConfig(), testRNG())

	candidates, geoFailure := o.Search(context.Background(), "", o.AttemptParams(2, 0))
	assert.Empty(t, candidates)
	require.Error(t, geoFailure)
	assert.True(t, errors.IsCategory(geoFailure, errors.CategoryNetwork))
}

func TestSearchEmptyGeoResultsAreNotTransportFailure(t *testing.T) {
	provider := &fakeProvider{
		geoSearchFn: func(ctx context.Context, lat, lon float64, radiusMeters, limit int) ([]commons.Candidate, error) {
			return nil, nil
		},
	}
	o := NewOrchestrator(provider, testCatalog(t), testSearchConfig(), testRNG())

	candidates, geoFailure := o.Search(context.Background(), "", o.AttemptParams(2, 0))
	assert.Empty(t, candidates)
	assert.NoError(t, geoFailure, "ran fine but found nothing is distinct from transport failure")
}
