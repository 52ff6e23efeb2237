// Package config loads collector settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sternrassler/listing-collector/pkg/listing"
	"github.com/Sternrassler/listing-collector/pkg/logging"
)

// Config holds all runtime settings.
type Config struct {
	ListingURL    string
	PlacesBaseURL string
	UserAgent     string
	Cookie        string

	// Cities are resolved when no city arguments are given.
	Cities []string

	OutputPath string
	MaxPages   int
	OffsetStep int

	HTTPTimeout    time.Duration
	ForbiddenDelay time.Duration

	// RedisURL enables the place cache and the shared dedup set. Empty
	// disables both.
	RedisURL string
	DedupTTL time.Duration

	LogLevel  logging.LogLevel
	LogPretty bool

	// MetricsAddr starts a /metrics listener when set.
	MetricsAddr string

	Dedupe         bool
	ExtendedSchema bool
	ExpandViewport bool
}

// Default returns the built-in settings.
func Default() Config {
	endpoint := listing.DefaultEndpointConfig()
	return Config{
		ListingURL:     endpoint.URL,
		PlacesBaseURL:  "https://www.swiggy.com",
		UserAgent:      endpoint.UserAgent,
		OutputPath:     "restaurants.csv",
		MaxPages:       10,
		OffsetStep:     1,
		HTTPTimeout:    30 * time.Second,
		ForbiddenDelay: 60 * time.Second,
		DedupTTL:       24 * time.Hour,
		LogLevel:       logging.LevelInfo,
	}
}

// Load reads the given .env files (".env" when none are named), then
// overlays environment variables on Default. Missing .env files are ignored.
// Only unparsable values are reported; ranges are checked by Validate.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Default()
	var errs []error

	cfg.ListingURL = getEnv("LISTING_URL", cfg.ListingURL)
	cfg.PlacesBaseURL = getEnv("PLACES_BASE_URL", cfg.PlacesBaseURL)
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	cfg.Cookie = getEnv("COOKIE", cfg.Cookie)
	cfg.Cities = getList("CITIES", cfg.Cities)
	cfg.OutputPath = getEnv("OUTPUT_PATH", cfg.OutputPath)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)

	var err error
	if cfg.MaxPages, err = getInt("MAX_PAGES", cfg.MaxPages); err != nil {
		errs = append(errs, err)
	}
	if cfg.OffsetStep, err = getInt("OFFSET_STEP", cfg.OffsetStep); err != nil {
		errs = append(errs, err)
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.ForbiddenDelay, err = getDuration("FORBIDDEN_DELAY", cfg.ForbiddenDelay); err != nil {
		errs = append(errs, err)
	}
	if cfg.DedupTTL, err = getDuration("DEDUP_TTL", cfg.DedupTTL); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogPretty, err = getBool("LOG_PRETTY", cfg.LogPretty); err != nil {
		errs = append(errs, err)
	}
	if cfg.Dedupe, err = getBool("DEDUPE", cfg.Dedupe); err != nil {
		errs = append(errs, err)
	}
	if cfg.ExtendedSchema, err = getBool("EXTENDED_SCHEMA", cfg.ExtendedSchema); err != nil {
		errs = append(errs, err)
	}
	if cfg.ExpandViewport, err = getBool("EXPAND_VIEWPORT", cfg.ExpandViewport); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogLevel, err = logging.ParseLevel(getEnv("LOG_LEVEL", string(cfg.LogLevel))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. Load does not call it so that callers can
// apply overrides first.
func (c Config) Validate() error {
	var errs []error
	if c.ListingURL == "" {
		errs = append(errs, errors.New("listing url is required"))
	}
	if c.OutputPath == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("max pages must be >= 1 (got %d)", c.MaxPages))
	}
	if c.OffsetStep < 1 {
		errs = append(errs, fmt.Errorf("offset step must be >= 1 (got %d)", c.OffsetStep))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout must be > 0 (got %s)", c.HTTPTimeout))
	}
	if c.ForbiddenDelay < 0 {
		errs = append(errs, fmt.Errorf("forbidden delay must be >= 0 (got %s)", c.ForbiddenDelay))
	}
	return errors.Join(errs...)
}

// Schema returns the row layout selected by ExtendedSchema.
func (c Config) Schema() listing.Schema {
	if c.ExtendedSchema {
		return listing.ExtendedSchema()
	}
	return listing.DefaultSchema()
}

// Endpoint returns the listing endpoint configuration.
func (c Config) Endpoint() listing.EndpointConfig {
	e := listing.DefaultEndpointConfig()
	e.URL = c.ListingURL
	e.UserAgent = c.UserAgent
	e.OffsetStep = c.OffsetStep
	return e
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
