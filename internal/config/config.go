// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, Load returns an error and the
// binary exits.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "JOBHUNT_CONFIG"

// Pagination modes. See query.CountMode.
const (
	PaginationPostFilter = "post-filter"
	PaginationExact      = "exact"
)

// Producer kinds.
const (
	ProducerRemote = "remote"
	ProducerAdzuna = "adzuna"
)

// Config holds all runtime configuration for both binaries.
type Config struct {
	Port          string
	GRPCPort      string
	DiscoveryPort string
	DatabaseURL   string
	RedisURL      string
	LogLevel      string

	AllowedOrigins []string

	Producer      string
	ScraperURL    string
	ScrapeTimeout time.Duration
	ScrapeCron    string
	ScrapeTZ      *time.Location
	ScrapeOnStart bool

	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string

	PaginationMode  string
	DefaultPageSize int
	MaxPageSize     int

	Search SearchProfile
}

// SearchProfile describes what the built-in producers look for. It can be
// supplied through the YAML file named by JOBHUNT_CONFIG.
type SearchProfile struct {
	Locations      []string `yaml:"locations"`
	SearchTerms    []string `yaml:"search_terms"`
	ExcludedTitles []string `yaml:"excluded_titles"`
	ResultsWanted  int      `yaml:"results_wanted"`
}

// Load reads .env, the optional YAML profile and environment variables, and
// returns a validated Config.
func Load() (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "5000"),
		GRPCPort:      getEnvOrDefault("GRPC_PORT", "9090"),
		DiscoveryPort: getEnvOrDefault("DISCOVERY_PORT", "8081"),
		DatabaseURL:   dbURL,
		RedisURL:      redisURL,
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		Producer:      getEnvOrDefault("SCRAPE_PRODUCER", ProducerRemote),
		ScraperURL:    strings.TrimRight(getEnvOrDefault("SCRAPER_URL", "http://localhost:5001"), "/"),
		ScrapeCron:    getEnvOrDefault("SCRAPE_CRON", "0 6 * * *"),
		AdzunaAppID:   os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:  os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry: getEnvOrDefault("ADZUNA_COUNTRY", "us"),
		Search:        DefaultSearchProfile(),
	}

	if err := cfg.applyDerived(); err != nil {
		return nil, err
	}

	if path := os.Getenv(configPathEnv); path != "" {
		profile, err := LoadSearchProfile(path)
		if err != nil {
			return nil, err
		}
		cfg.Search = mergeProfile(cfg.Search, profile)
	}

	return cfg, nil
}

func (c *Config) applyDerived() error {
	timeout, err := durationEnv("SCRAPE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return err
	}
	c.ScrapeTimeout = timeout

	tz := getEnvOrDefault("SCRAPE_TIMEZONE", "America/Chicago")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("SCRAPE_TIMEZONE %q: %w", tz, err)
	}
	c.ScrapeTZ = loc

	if c.ScrapeOnStart, err = boolEnv("SCRAPE_ON_START", false); err != nil {
		return err
	}

	switch c.Producer {
	case ProducerRemote, ProducerAdzuna:
	default:
		return fmt.Errorf("SCRAPE_PRODUCER must be %q or %q, got %q", ProducerRemote, ProducerAdzuna, c.Producer)
	}

	c.PaginationMode = getEnvOrDefault("PAGINATION_MODE", PaginationPostFilter)
	switch c.PaginationMode {
	case PaginationPostFilter, PaginationExact:
	default:
		return fmt.Errorf("PAGINATION_MODE must be %q or %q, got %q", PaginationPostFilter, PaginationExact, c.PaginationMode)
	}

	if c.DefaultPageSize, err = positiveIntEnv("DEFAULT_PAGE_SIZE", 20); err != nil {
		return err
	}
	if c.MaxPageSize, err = positiveIntEnv("MAX_PAGE_SIZE", 100); err != nil {
		return err
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE (%d) exceeds MAX_PAGE_SIZE (%d)", c.DefaultPageSize, c.MaxPageSize)
	}

	c.AllowedOrigins = allowedOrigins()
	return nil
}

// LoadSearchProfile reads a YAML search profile from path.
func LoadSearchProfile(path string) (SearchProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SearchProfile{}, fmt.Errorf("read %s: %w", path, err)
	}
	var p SearchProfile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return SearchProfile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

// DefaultSearchProfile is the profile used when no YAML file is configured.
func DefaultSearchProfile() SearchProfile {
	return SearchProfile{
		Locations: []string{
			"Madison, WI",
			"Boulder, CO",
			"Fort Collins, CO",
			"Raleigh, NC",
			"Durham, NC",
		},
		SearchTerms: []string{"psychiatrist", "psychiatry"},
		ExcludedTitles: []string{
			"nurse practitioner", "np ", " np", "aprn", "registered nurse",
			" rn ", " rn,", "psychologist", "social worker", "nurse", "nursing",
			"counselor", "counseler", "neurologist", "epileptologist",
		},
		ResultsWanted: 50,
	}
}

func mergeProfile(base, override SearchProfile) SearchProfile {
	if len(override.Locations) > 0 {
		base.Locations = override.Locations
	}
	if len(override.SearchTerms) > 0 {
		base.SearchTerms = override.SearchTerms
	}
	if override.ExcludedTitles != nil {
		base.ExcludedTitles = override.ExcludedTitles
	}
	if override.ResultsWanted > 0 {
		base.ResultsWanted = override.ResultsWanted
	}
	return base
}

func allowedOrigins() []string {
	origins := []string{"http://localhost:3000"}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		origins = append(origins, v)
	}
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	log.Printf("config: allowed CORS origins %v", origins)
	return origins
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return d, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, s)
	}
	return v, nil
}
