// Package config loads the static registry (country allow-list, keyword
// list, pipeline defaults) from an embedded YAML file and applies
// environment overrides. A .env file is honored when present so local
// development matches production layering.
package config

import (
	"embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryFS embed.FS

// Country pairs an ISO 3166-1 alpha-3 code with its display name.
type Country struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type registry struct {
	Countries []Country `yaml:"countries"`
	Keywords  []string  `yaml:"keywords"`
	Defaults  struct {
		BaseURL                 string `yaml:"base_url"`
		DetailBaseURL           string `yaml:"detail_base_url"`
		UpdateIntervalHours     int    `yaml:"update_interval_hours"`
		ResyncHourUTC           int    `yaml:"resync_hour_utc"`
		HistoricalYearsBack     int    `yaml:"historical_years_back"`
		MaxPageSize             int    `yaml:"max_page_size"`
		MaxRequestsPerFetch     int    `yaml:"max_requests_per_fetch"`
		DescriptionMaxLen       int    `yaml:"description_max_len"`
		PageDelaySeconds        int    `yaml:"page_delay_seconds"`
		WindowDelaySeconds      int    `yaml:"window_delay_seconds"`
		RateLimitBackoffSeconds int    `yaml:"rate_limit_backoff_seconds"`
	} `yaml:"defaults"`
}

// Config is the resolved runtime configuration shared by the pipeline,
// the API server, and the scheduler.
type Config struct {
	APIKey        string
	BaseURL       string
	DetailBaseURL string

	UpdateIntervalHours int
	ResyncHourUTC       int
	HistoricalYearsBack int

	MaxPageSize         int
	MaxRequestsPerFetch int
	DescriptionMaxLen   int

	PageDelay        time.Duration
	WindowDelay      time.Duration
	RateLimitBackoff time.Duration

	CountryCodes []string
	CountryNames map[string]string
	Keywords     []string

	DatabaseURL string
	Port        string
}

// Load reads the embedded registry, layers .env and environment
// overrides on top, and returns the resolved configuration.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := registryFS.ReadFile("registry.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded registry: %w", err)
	}

	var reg registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	if len(reg.Countries) == 0 {
		return nil, fmt.Errorf("registry has no countries")
	}

	cfg := &Config{
		APIKey:              os.Getenv("SAM_API_KEY"),
		BaseURL:             reg.Defaults.BaseURL,
		DetailBaseURL:       reg.Defaults.DetailBaseURL,
		UpdateIntervalHours: reg.Defaults.UpdateIntervalHours,
		ResyncHourUTC:       reg.Defaults.ResyncHourUTC,
		HistoricalYearsBack: reg.Defaults.HistoricalYearsBack,
		MaxPageSize:         reg.Defaults.MaxPageSize,
		MaxRequestsPerFetch: reg.Defaults.MaxRequestsPerFetch,
		DescriptionMaxLen:   reg.Defaults.DescriptionMaxLen,
		PageDelay:           time.Duration(reg.Defaults.PageDelaySeconds) * time.Second,
		WindowDelay:         time.Duration(reg.Defaults.WindowDelaySeconds) * time.Second,
		RateLimitBackoff:    time.Duration(reg.Defaults.RateLimitBackoffSeconds) * time.Second,
		CountryNames:        make(map[string]string, len(reg.Countries)),
		Keywords:            reg.Keywords,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Port:                os.Getenv("PORT"),
	}

	for _, c := range reg.Countries {
		cfg.CountryCodes = append(cfg.CountryCodes, c.Code)
		cfg.CountryNames[c.Code] = c.Name
	}

	if v := os.Getenv("SAM_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v, ok := envInt("UPDATE_INTERVAL_HOURS"); ok {
		cfg.UpdateIntervalHours = v
	}
	if v, ok := envInt("RESYNC_HOUR_UTC"); ok {
		cfg.ResyncHourUTC = v
	}
	if v, ok := envInt("HISTORICAL_YEARS_BACK"); ok {
		cfg.HistoricalYearsBack = v
	}
	if v, ok := envInt("MAX_RESULTS_PER_REQUEST"); ok {
		cfg.MaxPageSize = v
	}
	if cfg.Port == "" {
		cfg.Port = "8081"
	}

	return cfg, nil
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
