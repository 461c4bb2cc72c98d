// Package locations provides the embedded seed catalog of world cities used
// to anchor geographic photo searches.
package locations

import (
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/chronomap/chronomap-go/internal/errors"
	"github.com/chronomap/chronomap-go/internal/logging"
)

//go:embed data/cities.json
var dataFS embed.FS

const dataFilePath = "data/cities.json"

var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	serviceLogger, closeLogger, err = logging.NewFileLogger("logs/locations.log", "locations", slog.LevelInfo)
	if err != nil || serviceLogger == nil {
		serviceLogger = logging.NewDiscardLogger("locations", slog.LevelInfo)
		closeLogger = func() error { return nil }
	}
}

// City is a single seed location from the embedded catalog.
type City struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Catalog holds the parsed city seed table.
type Catalog struct {
	cities  []City
	nameMap map[string]*City
	mu      sync.RWMutex
}

// NewCatalog parses the city table from the provided filesystem. It expects
// the filesystem to contain 'data/cities.json'.
func NewCatalog(dataFs fs.FS) (*Catalog, error) {
	logger := serviceLogger
	logger.Debug("Reading city seed data", "path", dataFilePath)

	jsonData, err := fs.ReadFile(dataFs, dataFilePath)
	if err != nil {
		return nil, errors.New(err).
			Component("locations").
			Category(errors.CategoryFileIO).
			Context("path", dataFilePath).
			Build()
	}
	if len(jsonData) == 0 {
		return nil, errors.Newf("city seed data file is empty").
			Component("locations").
			Category(errors.CategoryFileIO).
			Context("path", dataFilePath).
			Build()
	}

	var cities []City
	if err := json.Unmarshal(jsonData, &cities); err != nil {
		return nil, errors.New(err).
			Component("locations").
			Category(errors.CategoryValidation).
			Context("path", dataFilePath).
			Build()
	}
	if len(cities) == 0 {
		return nil, errors.Newf("city seed data contains no entries").
			Component("locations").
			Category(errors.CategoryValidation).
			Build()
	}

	nameMap := make(map[string]*City, len(cities))
	for i := range cities {
		c := &cities[i]
		if err := validateCity(c); err != nil {
			return nil, err
		}
		nameMap[strings.ToLower(c.Name)] = c
	}

	logger.Info("City catalog initialized", "city_count", len(cities))
	return &Catalog{cities: cities, nameMap: nameMap}, nil
}

// Default returns a catalog backed by the embedded city table.
func Default() (*Catalog, error) {
	return NewCatalog(dataFS)
}

func validateCity(c *City) error {
	switch {
	case c.Name == "":
		return errors.Newf("city entry missing name").
			Component("locations").
			Category(errors.CategoryValidation).
			Build()
	case c.Lat < -90 || c.Lat > 90:
		return errors.Newf("city %q has latitude out of range: %f", c.Name, c.Lat).
			Component("locations").
			Category(errors.CategoryValidation).
			Context("city", c.Name).
			Build()
	case c.Lon < -180 || c.Lon > 180:
		return errors.Newf("city %q has longitude out of range: %f", c.Name, c.Lon).
			Component("locations").
			Category(errors.CategoryValidation).
			Context("city", c.Name).
			Build()
	}
	return nil
}

// Len returns the number of cities in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cities)
}

// All returns a copy of every city in the catalog.
func (c *Catalog) All() []City {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]City, len(c.cities))
	copy(out, c.cities)
	return out
}

// ByName looks up a city by case-insensitive name.
func (c *Catalog) ByName(name string) (City, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	city, ok := c.nameMap[strings.ToLower(name)]
	if !ok {
		return City{}, false
	}
	return *city, true
}

// RandomSubset returns up to n distinct cities chosen uniformly at random.
// If n exceeds the catalog size the whole catalog is returned, shuffled.
func (c *Catalog) RandomSubset(n int, rng *rand.Rand) []City {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(c.cities) {
		n = len(c.cities)
	}

	indices := rng.Perm(len(c.cities))
	out := make([]City, 0, n)
	for _, idx := range indices[:n] {
		out = append(out, c.cities[idx])
	}
	return out
}
