package locations

import (
	"math/rand/v2"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cat.Len(), 60, "embedded catalog should cover a broad set of cities")

	city, ok := cat.ByName("paris")
	require.True(t, ok, "lookup should be case-insensitive")
	assert.Equal(t, "Paris", city.Name)
	assert.Equal(t, "France", city.Country)
	assert.InDelta(t, 48.8566, city.Lat, 0.001)
}

func TestNewCatalogRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"empty file", ""},
		{"invalid json", "{not json"},
		{"empty array", "[]"},
		{"missing name", `[{"country":"X","lat":1,"lon":2}]`},
		{"latitude out of range", `[{"name":"Bad","country":"X","lat":95,"lon":2}]`},
		{"longitude out of range", `[{"name":"Bad","country":"X","lat":1,"lon":-200}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				dataFilePath: &fstest.MapFile{Data: []byte(tt.json)},
			}
			_, err := NewCatalog(fsys)
			assert.Error(t, err)
		})
	}
}

func TestRandomSubset(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))

	subset := cat.RandomSubset(5, rng)
	require.Len(t, subset, 5)

	seen := make(map[string]bool, len(subset))
	for _, c := range subset {
		assert.False(t, seen[c.Name], "subset must not repeat %s", c.Name)
		seen[c.Name] = true
	}

	all := cat.RandomSubset(cat.Len()+10, rng)
	assert.Len(t, all, cat.Len(), "oversized request is clamped to the catalog size")

	assert.Nil(t, cat.RandomSubset(0, rng))
}
