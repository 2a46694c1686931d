// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gazetteer/config.yaml",
	"/etc/gazetteer/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible default values.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8087,
			Timeout:         60 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			Dir:    "/data/cache",
			TTL:    30 * 24 * time.Hour,
			HotTTL: 24 * time.Hour,
		},
		Google: GoogleConfig{
			Enabled:          true,
			APIKey:           "",
			BaseURL:          "https://maps.googleapis.com/maps/api",
			PageSettleDelay:  2 * time.Second,
			RetryAttempts:    3,
			RetryDelay:       time.Second,
			DetailBatchSize:  30,
			DetailQPS:        10,
			MaxReviews:       10,
			SearchMaxReviews: 3,
		},
		Ticketmaster: TicketmasterConfig{
			Enabled:    true,
			APIKey:     "",
			BaseURL:    "https://app.ticketmaster.com/discovery/v2",
			MaxRetries: 2,
			RetryDelay: 2 * time.Second,
			PageSize:   50,
			TopN:       10,
		},
		Aggregate: AggregateConfig{
			WorshipCap:    2000,
			CateringCap:   1500,
			RealEstateCap: 2000,
			RestaurantCap: 200,
			SearchCap:     100,
		},
		Proximity: ProximityConfig{
			AvgSpeedKmPerMin: 0.6,
			MaxMinutes:       60,
			LiveRadiusMeters: 5000,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			CheckInterval: 30 * time.Second,
			RunTimeout:    30 * time.Minute,
			DailyCron:     "0 3 * * *",
			MonthlyCron:   "59 23 28-31 * *",
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// GOOGLE_API_KEY -> google.api_key, HTTP_PORT -> server.port
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exist.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when sourced from env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings, but the config
// struct expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - GOOGLE_API_KEY -> google.api_key
//   - TICKETMASTER_API_KEY -> ticketmaster.api_key
//   - HTTP_PORT -> server.port
//   - CACHE_DIR -> cache.dir
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Cache mappings
		"cache_dir":     "cache.dir",
		"cache_ttl":     "cache.ttl",
		"cache_hot_ttl": "cache.hot_ttl",

		// Google mappings
		"google_enabled":            "google.enabled",
		"google_api_key":            "google.api_key",
		"google_base_url":           "google.base_url",
		"google_page_settle_delay":  "google.page_settle_delay",
		"google_retry_attempts":     "google.retry_attempts",
		"google_retry_delay":        "google.retry_delay",
		"google_detail_batch_size":  "google.detail_batch_size",
		"google_detail_qps":         "google.detail_qps",
		"google_max_reviews":        "google.max_reviews",
		"google_search_max_reviews": "google.search_max_reviews",

		// Ticketmaster mappings
		"ticketmaster_enabled":     "ticketmaster.enabled",
		"ticketmaster_api_key":     "ticketmaster.api_key",
		"ticketmaster_base_url":    "ticketmaster.base_url",
		"ticketmaster_max_retries": "ticketmaster.max_retries",
		"ticketmaster_retry_delay": "ticketmaster.retry_delay",
		"ticketmaster_page_size":   "ticketmaster.page_size",
		"ticketmaster_top_n":       "ticketmaster.top_n",

		// Aggregation cap mappings
		"aggregate_worship_cap":    "aggregate.worship_cap",
		"aggregate_catering_cap":   "aggregate.catering_cap",
		"aggregate_realestate_cap": "aggregate.realestate_cap",
		"aggregate_restaurant_cap": "aggregate.restaurant_cap",
		"aggregate_search_cap":     "aggregate.search_cap",

		// Proximity mappings
		"proximity_avg_speed":   "proximity.avg_speed_km_per_min",
		"proximity_max_minutes": "proximity.max_minutes",
		"proximity_live_radius": "proximity.live_radius_meters",

		// Scheduler mappings
		"scheduler_enabled":        "scheduler.enabled",
		"scheduler_check_interval": "scheduler.check_interval",
		"scheduler_run_timeout":    "scheduler.run_timeout",
		"scheduler_daily_cron":     "scheduler.daily_cron",
		"scheduler_monthly_cron":   "scheduler.monthly_cron",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables
	// don't pollute the config.
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for mutex protection when swapping the
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
