package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "study.yaml", cfg.StudyFile)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "output/non_cumulative.csv", cfg.AuditLog)
	assert.Equal(t, DriverSQLite, cfg.SourceDriver)
	assert.Equal(t, "data/master.sqlite", cfg.SourceDSN)
	assert.Empty(t, cfg.Schedule)
	assert.Equal(t, 1, cfg.Workers)
	assert.False(t, cfg.PersistTables)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PublishEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("STUDY_FILE", "/etc/storm/study.yaml")
	t.Setenv("OUTPUT_DIR", "/var/lib/storm")
	t.Setenv("SOURCE_DRIVER", "postgres")
	t.Setenv("SOURCE_DSN", "postgres://storm@db/rain?sslmode=disable")
	t.Setenv("SCHEDULE", "0 6 * * *")
	t.Setenv("WORKERS", "4")
	t.Setenv("PERSIST_TABLES", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_STORM_TOPIC", "storms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/etc/storm/study.yaml", cfg.StudyFile)
	assert.Equal(t, "/var/lib/storm/non_cumulative.csv", cfg.AuditLog)
	assert.Equal(t, DriverPostgres, cfg.SourceDriver)
	assert.Equal(t, "0 6 * * *", cfg.Schedule)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.PersistTables)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "storms", cfg.KafkaStormTopic)
	assert.True(t, cfg.PublishEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		extra map[string]string
	}{
		{name: "shutdown timeout", key: "SHUTDOWN_TIMEOUT", value: "soon"},
		{name: "negative shutdown timeout", key: "SHUTDOWN_TIMEOUT", value: "-1s"},
		{name: "workers", key: "WORKERS", value: "0"},
		{name: "persist flag", key: "PERSIST_TABLES", value: "maybe"},
		{name: "driver", key: "SOURCE_DRIVER", value: "access"},
		{name: "schedule", key: "SCHEDULE", value: "every tuesday"},
		{name: "persist with csv", key: "PERSIST_TABLES", value: "true", extra: map[string]string{"SOURCE_DRIVER": "csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			for k, v := range tt.extra {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
