package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.CountryCodes) != 54 {
		t.Errorf("CountryCodes = %d, want 54", len(cfg.CountryCodes))
	}
	if len(cfg.CountryNames) != 54 {
		t.Errorf("CountryNames = %d, want 54", len(cfg.CountryNames))
	}
	if got := cfg.CountryNames["KEN"]; got != "Kenya" {
		t.Errorf("CountryNames[KEN] = %q", got)
	}
	if len(cfg.Keywords) == 0 {
		t.Error("Keywords empty")
	}

	if cfg.BaseURL != "https://api.sam.gov/opportunities/v2/search" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DetailBaseURL != "https://sam.gov/opp/" {
		t.Errorf("DetailBaseURL = %q", cfg.DetailBaseURL)
	}
	if cfg.UpdateIntervalHours != 6 {
		t.Errorf("UpdateIntervalHours = %d", cfg.UpdateIntervalHours)
	}
	if cfg.HistoricalYearsBack != 10 {
		t.Errorf("HistoricalYearsBack = %d", cfg.HistoricalYearsBack)
	}
	if cfg.MaxPageSize != 1000 {
		t.Errorf("MaxPageSize = %d", cfg.MaxPageSize)
	}
	if cfg.MaxRequestsPerFetch != 10 {
		t.Errorf("MaxRequestsPerFetch = %d", cfg.MaxRequestsPerFetch)
	}
	if cfg.DescriptionMaxLen != 1000 {
		t.Errorf("DescriptionMaxLen = %d", cfg.DescriptionMaxLen)
	}
	if cfg.PageDelay != time.Second {
		t.Errorf("PageDelay = %v", cfg.PageDelay)
	}
	if cfg.WindowDelay != 5*time.Second {
		t.Errorf("WindowDelay = %v", cfg.WindowDelay)
	}
	if cfg.RateLimitBackoff != 30*time.Second {
		t.Errorf("RateLimitBackoff = %v", cfg.RateLimitBackoff)
	}
	if cfg.Port == "" {
		t.Error("Port not defaulted")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SAM_BASE_URL", "http://127.0.0.1:9999/search")
	t.Setenv("UPDATE_INTERVAL_HOURS", "12")
	t.Setenv("HISTORICAL_YEARS_BACK", "3")
	t.Setenv("MAX_RESULTS_PER_REQUEST", "250")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.BaseURL != "http://127.0.0.1:9999/search" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.UpdateIntervalHours != 12 {
		t.Errorf("UpdateIntervalHours = %d", cfg.UpdateIntervalHours)
	}
	if cfg.HistoricalYearsBack != 3 {
		t.Errorf("HistoricalYearsBack = %d", cfg.HistoricalYearsBack)
	}
	if cfg.MaxPageSize != 250 {
		t.Errorf("MaxPageSize = %d", cfg.MaxPageSize)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
}

func TestLoadIgnoresInvalidEnvInts(t *testing.T) {
	t.Setenv("UPDATE_INTERVAL_HOURS", "not-a-number")
	t.Setenv("HISTORICAL_YEARS_BACK", "-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.UpdateIntervalHours != 6 {
		t.Errorf("invalid override changed UpdateIntervalHours = %d", cfg.UpdateIntervalHours)
	}
	if cfg.HistoricalYearsBack != 10 {
		t.Errorf("negative override changed HistoricalYearsBack = %d", cfg.HistoricalYearsBack)
	}
}
