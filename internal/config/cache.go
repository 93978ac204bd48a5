package config

import (
	"strings"
	"time"
)

// CacheConfig configures the Redis response cache in front of the
// catalog reads.  Routes in Exclude are matched against the echo route
// template and always reach the handler: their bodies carry live ticket
// availability, which changes on every claim and every reclaim.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
	Exclude      map[string]bool
}

// DefaultCacheExclude lists the read routes whose responses embed
// availability counts.
const DefaultCacheExclude = "/v1/shows/search,/v1/shows/:id/tickets,/v1/bookings/:id"

// LoadCacheConfig reads CACHE_* variables.  A TTL below one second falls
// back to 30s so a typo cannot turn the cache into a hot loop on Redis.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      splitSet(envStr("CACHE_METHODS", "GET"), strings.ToUpper),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		Exclude:      splitSet(envStr("CACHE_EXCLUDE_ROUTES", DefaultCacheExclude), nil),
	}
	if cfg.TTL < time.Second {
		cfg.TTL = 30 * time.Second
	}
	return cfg
}

// Cacheable reports whether responses of the given method and route
// template may be stored.
func (c CacheConfig) Cacheable(method, route string) bool {
	return c.Methods[strings.ToUpper(method)] && !c.Exclude[route]
}

func splitSet(s string, norm func(string) string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if norm != nil {
			p = norm(p)
		}
		if p != "" {
			m[p] = true
		}
	}
	return m
}
