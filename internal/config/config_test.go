// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package config

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Google.APIKey = "test-google-key"
	cfg.Ticketmaster.APIKey = "test-tm-key"
	return cfg
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8087 {
		t.Errorf("Server.Port = %d, want 8087", cfg.Server.Port)
	}
	if cfg.Google.DetailBatchSize != 30 {
		t.Errorf("Google.DetailBatchSize = %d, want 30", cfg.Google.DetailBatchSize)
	}
	if cfg.Google.PageSettleDelay.Seconds() != 2 {
		t.Errorf("Google.PageSettleDelay = %v, want 2s", cfg.Google.PageSettleDelay)
	}
	if cfg.Ticketmaster.MaxRetries != 2 {
		t.Errorf("Ticketmaster.MaxRetries = %d, want 2", cfg.Ticketmaster.MaxRetries)
	}
	if cfg.Proximity.AvgSpeedKmPerMin != 0.6 {
		t.Errorf("Proximity.AvgSpeedKmPerMin = %f, want 0.6", cfg.Proximity.AvgSpeedKmPerMin)
	}
	if cfg.Scheduler.MonthlyCron != "59 23 28-31 * *" {
		t.Errorf("Scheduler.MonthlyCron = %q", cfg.Scheduler.MonthlyCron)
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsMissingGoogleKey(t *testing.T) {
	cfg := validConfig()
	cfg.Google.APIKey = ""

	err := cfg.Validate()
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("Validate() = %v, want ErrConfigurationMissing", err)
	}
}

func TestValidateRejectsMissingTicketmasterKey(t *testing.T) {
	cfg := validConfig()
	cfg.Ticketmaster.APIKey = ""

	err := cfg.Validate()
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("Validate() = %v, want ErrConfigurationMissing", err)
	}
}

func TestValidateAllowsDisabledProviderWithoutKey(t *testing.T) {
	cfg := validConfig()
	cfg.Ticketmaster.Enabled = false
	cfg.Ticketmaster.APIKey = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for disabled provider", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject port 0")
	}
}

func TestValidateRejectsEmptyCacheDir(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Dir = ""

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject empty cache.dir")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"GOOGLE_API_KEY", "google.api_key"},
		{"TICKETMASTER_API_KEY", "ticketmaster.api_key"},
		{"HTTP_PORT", "server.port"},
		{"CACHE_DIR", "cache.dir"},
		{"LOG_LEVEL", "logging.level"},
		{"SCHEDULER_MONTHLY_CRON", "scheduler.monthly_cron"},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "env-google-key")
	t.Setenv("TICKETMASTER_API_KEY", "env-tm-key")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Google.APIKey != "env-google-key" {
		t.Errorf("Google.APIKey = %q, want env-google-key", cfg.Google.APIKey)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
}

func TestAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8087}
	if got := s.Addr(); got != "127.0.0.1:8087" {
		t.Errorf("Addr() = %q", got)
	}
}
