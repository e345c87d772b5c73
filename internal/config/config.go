package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultEventsURL     = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"
	DefaultBoundariesURL = "https://raw.githubusercontent.com/fraxen/tectonicplates/master/GeoJSON/PB2002_boundaries.json"
)

var validate = validator.New()

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string `validate:"required"`
	LogLevel        string `validate:"oneof=debug info warn warning error"`
	LogFormat       string `validate:"oneof=json text"`
	ShutdownTimeout time.Duration

	// Feed sources.
	EventsURL       string        `validate:"required,url"`
	BoundariesURL   string        `validate:"required,url"`
	FetchTimeout    time.Duration `validate:"gt=0"`
	RefreshInterval time.Duration `validate:"gte=1m"`

	// Base layer tile proxy.
	TileProxyEnabled bool
	TileCacheSize    int           `validate:"gt=0"`
	TileCacheTTL     time.Duration `validate:"gt=0"`
	TileRateLimit    float64       `validate:"gt=0"`

	// Kafka marker sink.
	KafkaEnabled bool
	KafkaBrokers []string `validate:"required_if=KafkaEnabled true"`
	KafkaTopic   string   `validate:"required_if=KafkaEnabled true"`

	// Mapbox reverse geocoding for events without a place.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	tileCacheTTL, err := parseDuration("TILE_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	tileRateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("TILE_RATE_LIMIT", "20"), 64)
	if err != nil {
		return nil, errors.New("invalid TILE_RATE_LIMIT")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(strings.TrimSpace(sharedcfg.EnvOrDefault("LOG_LEVEL", "info"))),
		LogFormat:       strings.ToLower(strings.TrimSpace(sharedcfg.EnvOrDefault("LOG_FORMAT", "json"))),
		ShutdownTimeout: shutdownTimeout,

		EventsURL:       sharedcfg.EnvOrDefault("EVENTS_URL", DefaultEventsURL),
		BoundariesURL:   sharedcfg.EnvOrDefault("BOUNDARIES_URL", DefaultBoundariesURL),
		FetchTimeout:    fetchTimeout,
		RefreshInterval: refreshInterval,

		TileProxyEnabled: os.Getenv("TILE_PROXY_ENABLED") == "true",
		TileCacheSize:    parsePositiveInt("TILE_CACHE_SIZE", 2000),
		TileCacheTTL:     tileCacheTTL,
		TileRateLimit:    tileRateLimit,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "styled-earthquakes"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parsePositiveInt("MAPBOX_CACHE_SIZE", 1000),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
