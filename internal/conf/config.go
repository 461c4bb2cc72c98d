// Package conf holds the application settings, loaded from a YAML config
// file and environment variables via viper.
package conf

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chronomap/chronomap-go/internal/errors"
	"github.com/spf13/viper"
)

// Log rotation types
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// LogConfig defines settings for service log files.
type LogConfig struct {
	Enabled  bool   // true to enable file logging
	Path     string // directory for service log files
	Rotation string // daily, weekly or size
	MaxSize  int64  // max size in bytes for size rotation
}

// ProviderConfig defines settings for the content-provider API client.
type ProviderConfig struct {
	BaseURL        string        // MediaWiki API endpoint
	UserAgent      string        // user agent sent with every request
	Timeout        time.Duration // per-request HTTP timeout
	RateLimitRPS   float64       // sustained requests per second
	RateLimitBurst int           // rate limiter burst size
	MaxRetries     int           // attempts per API call before giving up
	BatchLimit     int           // provider's detail-by-id batch limit
}

// CacheConfig defines settings for the in-memory memoizing cache.
type CacheConfig struct {
	TTL     time.Duration // entry lifetime
	MaxSize int           // LRU capacity
}

// SearchConfig defines the expanding search parameters used across retry
// attempts.
type SearchConfig struct {
	MaxRetries       int     // additional attempts after the first
	BaseRadiusMeters int     // geosearch radius on attempt 0
	RadiusMultiplier float64 // radius growth per attempt
	BaseLimit        int     // per-location result limit on attempt 0
	LimitMultiplier  float64 // limit growth per attempt
	LocationCap      int     // upper bound on locations per attempt
	MinYear          int     // oldest acceptable photo year
}

// Settings contains all configuration options for chronomap.
type Settings struct {
	Debug    bool
	Version  string // populated at build time
	Log      LogConfig
	Provider ProviderConfig
	Cache    CacheConfig
	Search   SearchConfig
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and installs it as the global one.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/chronomap")
	viper.AddConfigPath("/etc/chronomap")

	viper.SetEnvPrefix("chronomap")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults and env cover everything
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
