package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultCatalogURL is the Copernicus Data Space STAC endpoint.
const DefaultCatalogURL = "https://catalogue.dataspace.copernicus.eu/stac"

// Config holds all service settings, populated from environment variables.
type Config struct {
	WorkRoot           string
	ResultsDir         string
	ArchiveDir         string
	BoundaryIndex      string
	ExtractConcurrency int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DBPath string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	// Product catalog configuration.
	CatalogURL       string
	CatalogToken     string
	CatalogTimeout   time.Duration
	CatalogCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := parseDuration("CATALOG_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	concurrency, err := parseInt("EXTRACT_CONCURRENCY", 4, 1, 64)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseInt("CATALOG_CACHE_SIZE", 100, 1, 100000)
	if err != nil {
		return nil, err
	}

	brokersRaw, brokersSet := os.LookupEnv("KAFKA_BROKERS")
	kafkaEnabled := brokersSet && brokersRaw != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		WorkRoot:           sharedcfg.EnvOrDefault("WORK_ROOT", "."),
		ResultsDir:         sharedcfg.EnvOrDefault("RESULTS_DIR", "results"),
		ArchiveDir:         sharedcfg.EnvOrDefault("ARCHIVE_DIR", "images"),
		BoundaryIndex:      sharedcfg.EnvOrDefault("BOUNDARY_INDEX", "CAOP.shp"),
		ExtractConcurrency: concurrency,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath: sharedcfg.EnvOrDefault("DB_PATH", "burnscan.db"),

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "burn-area-analyses"),
		KafkaEnabled: kafkaEnabled,

		CatalogURL:       sharedcfg.EnvOrDefault("CATALOG_URL", DefaultCatalogURL),
		CatalogToken:     os.Getenv("CATALOG_TOKEN"),
		CatalogTimeout:   catalogTimeout,
		CatalogCacheSize: cacheSize,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}
