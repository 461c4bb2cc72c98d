// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("log.enabled", true)
	viper.SetDefault("log.path", "logs/")
	viper.SetDefault("log.rotation", RotationDaily)
	viper.SetDefault("log.maxsize", 1048576)

	viper.SetDefault("provider.baseurl", "https://commons.wikimedia.org/w/api.php")
	viper.SetDefault("provider.useragent", "")
	viper.SetDefault("provider.timeout", 15*time.Second)
	viper.SetDefault("provider.ratelimitrps", 4.0)
	viper.SetDefault("provider.ratelimitburst", 4)
	viper.SetDefault("provider.maxretries", 3)
	viper.SetDefault("provider.batchlimit", 50)

	viper.SetDefault("cache.ttl", 10*time.Minute)
	viper.SetDefault("cache.maxsize", 100)

	viper.SetDefault("search.maxretries", 3)
	viper.SetDefault("search.baseradiusmeters", 10000)
	viper.SetDefault("search.radiusmultiplier", 2.0)
	viper.SetDefault("search.baselimit", 20)
	viper.SetDefault("search.limitmultiplier", 1.5)
	viper.SetDefault("search.locationcap", 30)
	viper.SetDefault("search.minyear", 1900)
}
