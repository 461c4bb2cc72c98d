// conf/validate.go

package conf

import (
	"fmt"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateProviderSettings(&settings.Provider); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCacheSettings(&settings.Cache); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSearchSettings(&settings.Search); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateProviderSettings(p *ProviderConfig) error {
	if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return fmt.Errorf("provider.baseurl must be an HTTP(S) URL, got %q", p.BaseURL)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive, got %v", p.Timeout)
	}
	if p.RateLimitRPS <= 0 {
		return fmt.Errorf("provider.ratelimitrps must be positive, got %v", p.RateLimitRPS)
	}
	if p.MaxRetries < 1 {
		return fmt.Errorf("provider.maxretries must be at least 1, got %d", p.MaxRetries)
	}
	if p.BatchLimit < 1 || p.BatchLimit > 500 {
		return fmt.Errorf("provider.batchlimit must be within [1, 500], got %d", p.BatchLimit)
	}
	return nil
}

func validateCacheSettings(c *CacheConfig) error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %v", c.TTL)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("cache.maxsize must be at least 1, got %d", c.MaxSize)
	}
	return nil
}

func validateSearchSettings(s *SearchConfig) error {
	if s.MaxRetries < 0 {
		return fmt.Errorf("search.maxretries must not be negative, got %d", s.MaxRetries)
	}
	if s.BaseRadiusMeters < 1 {
		return fmt.Errorf("search.baseradiusmeters must be positive, got %d", s.BaseRadiusMeters)
	}
	if s.RadiusMultiplier < 1 {
		return fmt.Errorf("search.radiusmultiplier must be >= 1, got %v", s.RadiusMultiplier)
	}
	if s.LimitMultiplier < 1 {
		return fmt.Errorf("search.limitmultiplier must be >= 1, got %v", s.LimitMultiplier)
	}
	if s.LocationCap < 1 {
		return fmt.Errorf("search.locationcap must be positive, got %d", s.LocationCap)
	}
	if s.MinYear < 1 {
		return fmt.Errorf("search.minyear must be positive, got %d", s.MinYear)
	}
	return nil
}
