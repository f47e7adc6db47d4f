package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Source drivers accepted by SOURCE_DRIVER.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverCSV      = "csv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	StudyFile string
	OutputDir string
	AuditLog  string

	SourceDriver string
	SourceDSN    string

	// Schedule is a cron spec; empty runs the pipeline once and exits.
	Schedule      string
	Workers       int
	PersistTables bool

	KafkaBrokers    []string
	KafkaStormTopic string
}

// PublishEnabled reports whether storm summaries are sent to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory, if present, is loaded first and never
// overrides variables already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("WORKERS", 1)
	if err != nil {
		return nil, err
	}
	persist, err := parseBool("PERSIST_TABLES", false)
	if err != nil {
		return nil, err
	}

	outputDir := envOrDefault("OUTPUT_DIR", "output")
	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		StudyFile:       envOrDefault("STUDY_FILE", "study.yaml"),
		OutputDir:       outputDir,
		AuditLog:        envOrDefault("AUDIT_LOG", filepath.Join(outputDir, "non_cumulative.csv")),
		SourceDriver:    envOrDefault("SOURCE_DRIVER", DriverSQLite),
		SourceDSN:       envOrDefault("SOURCE_DSN", "data/master.sqlite"),
		Schedule:        envOrDefault("SCHEDULE", ""),
		Workers:         workers,
		PersistTables:   persist,
		KafkaBrokers:    parseList(envOrDefault("KAFKA_BROKERS", "")),
		KafkaStormTopic: envOrDefault("KAFKA_STORM_TOPIC", "storm-windows"),
	}

	switch cfg.SourceDriver {
	case DriverSQLite, DriverPostgres, DriverCSV:
	default:
		return nil, fmt.Errorf("unsupported SOURCE_DRIVER %q", cfg.SourceDriver)
	}
	if cfg.SourceDSN == "" {
		return nil, errors.New("SOURCE_DSN is required")
	}
	if cfg.PersistTables && cfg.SourceDriver == DriverCSV {
		return nil, errors.New("PERSIST_TABLES requires a SQL source driver")
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("invalid SCHEDULE: %w", err)
		}
	}
	if cfg.PublishEnabled() && cfg.KafkaStormTopic == "" {
		return nil, errors.New("KAFKA_STORM_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}
