package config

import "time"

// CacheConfig defines settings for the availability report cache. When
// Enabled is false or no Redis client is configured, caching is disabled
// and every query goes to the store.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads the cache settings. Defaults are used when
// variables are not set; a non-positive TTL disables the cache.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("AVAILABILITY_CACHE_TTL", 30*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "availability"),
	}
	if cfg.TTL <= 0 {
		cfg.Enabled = false
	}
	return cfg
}
