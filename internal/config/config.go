// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfigurationMissing indicates an enabled provider has no API key.
// Startup fails fast on this rather than failing every request later.
var ErrConfigurationMissing = errors.New("configuration missing")

// Config is the root configuration for Gazetteer.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Cache        CacheConfig        `koanf:"cache"`
	Google       GoogleConfig       `koanf:"google"`
	Ticketmaster TicketmasterConfig `koanf:"ticketmaster"`
	Aggregate    AggregateConfig    `koanf:"aggregate"`
	Proximity    ProximityConfig    `koanf:"proximity"`
	Scheduler    SchedulerConfig    `koanf:"scheduler"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig holds the named cache store settings.
type CacheConfig struct {
	// Dir is the directory holding one JSON blob per cache name.
	Dir string `koanf:"dir"`

	// TTL is how long a cached blob is considered fresh. Stale blobs
	// are still served; the scheduler refreshes them.
	TTL time.Duration `koanf:"ttl"`

	// HotTTL is the in-memory hot layer expiry.
	HotTTL time.Duration `koanf:"hot_ttl"`
}

// GoogleConfig holds Google Places and Geocoding API settings.
type GoogleConfig struct {
	Enabled bool   `koanf:"enabled"`
	APIKey  string `koanf:"api_key"`

	// BaseURL is the Maps API root. Overridable for tests.
	BaseURL string `koanf:"base_url"`

	// PageSettleDelay is the wait before a next_page_token becomes
	// valid on the provider side.
	PageSettleDelay time.Duration `koanf:"page_settle_delay"`

	// RetryAttempts bounds OVER_QUERY_LIMIT / transient retries.
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`

	// DetailBatchSize is how many place detail calls run concurrently
	// within one enrichment batch. Batches themselves are sequential.
	DetailBatchSize int `koanf:"detail_batch_size"`

	// DetailQPS bounds detail-call throughput across all batches.
	DetailQPS float64 `koanf:"detail_qps"`

	// MaxReviews caps reviews kept per place on the aggregation path.
	// SearchMaxReviews is the tighter cap on the interactive search path.
	MaxReviews       int `koanf:"max_reviews"`
	SearchMaxReviews int `koanf:"search_max_reviews"`
}

// TicketmasterConfig holds Ticketmaster Discovery API settings.
type TicketmasterConfig struct {
	Enabled bool   `koanf:"enabled"`
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`

	// MaxRetries bounds the HTTP 429 retry loop per request.
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`

	// PageSize is the per-term result page size.
	PageSize int `koanf:"page_size"`

	// TopN caps the final merged, date-sorted event list.
	TopN int `koanf:"top_n"`
}

// AggregateConfig holds per-domain result caps for aggregation runs.
// A cap of 0 means the domain default applies.
type AggregateConfig struct {
	WorshipCap    int `koanf:"worship_cap"`
	CateringCap   int `koanf:"catering_cap"`
	RealEstateCap int `koanf:"realestate_cap"`
	RestaurantCap int `koanf:"restaurant_cap"`
	SearchCap     int `koanf:"search_cap"`
}

// ProximityConfig holds nearby-query settings.
type ProximityConfig struct {
	// AvgSpeedKmPerMin converts distance to a travel-time estimate.
	// Default 0.6 (36 km/h), a city-traffic figure, not routing.
	AvgSpeedKmPerMin float64 `koanf:"avg_speed_km_per_min"`

	// MaxMinutes is the widest travel-time tier considered.
	MaxMinutes float64 `koanf:"max_minutes"`

	// LiveRadiusMeters is the provider nearby-search radius used when
	// the cache has nothing within range.
	LiveRadiusMeters int `koanf:"live_radius_meters"`
}

// SchedulerConfig holds refresh scheduler settings.
type SchedulerConfig struct {
	Enabled bool `koanf:"enabled"`

	// CheckInterval is how often schedules are evaluated for due runs.
	CheckInterval time.Duration `koanf:"check_interval"`

	// RunTimeout bounds a single domain refresh.
	RunTimeout time.Duration `koanf:"run_timeout"`

	// DailyCron refreshes the events cache every night.
	// MonthlyCron fires on the last days of the month; the scheduler
	// additionally guards that tomorrow is a new month.
	DailyCron   string `koanf:"daily_cron"`
	MonthlyCron string `koanf:"monthly_cron"`
}

// Validate checks the configuration for fatal problems.
// Enabled providers without credentials are rejected here so the
// process refuses to start half-configured.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Cache.Dir == "" {
		return errors.New("cache.dir must not be empty")
	}

	if c.Google.Enabled && c.Google.APIKey == "" {
		return fmt.Errorf("%w: google.api_key required when google.enabled", ErrConfigurationMissing)
	}
	if c.Ticketmaster.Enabled && c.Ticketmaster.APIKey == "" {
		return fmt.Errorf("%w: ticketmaster.api_key required when ticketmaster.enabled", ErrConfigurationMissing)
	}

	if c.Google.DetailBatchSize < 1 {
		return fmt.Errorf("google.detail_batch_size must be >= 1, got %d", c.Google.DetailBatchSize)
	}
	if c.Proximity.AvgSpeedKmPerMin <= 0 {
		return fmt.Errorf("proximity.avg_speed_km_per_min must be positive, got %f", c.Proximity.AvgSpeedKmPerMin)
	}

	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
