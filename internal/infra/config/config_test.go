package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORAGE_DRIVER", "EVENTS_BROKER", "TX_RETRY_BACKOFF", "SWEEP_ENABLED", "REDIS_DB"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, BrokerNone, cfg.EventsBroker)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 120 * time.Millisecond}, cfg.TxRetryBackoff)
	assert.True(t, cfg.SweepEnabled)
}

func TestLoadRequiresDriverSettings(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	_, err := Load()
	assert.ErrorContains(t, err, "POSTGRES_DSN")

	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("EVENTS_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "")
	_, err = Load()
	assert.ErrorContains(t, err, "KAFKA_BROKERS")
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("EVENTS_BROKER", "none")
	t.Setenv("TX_RETRY_BACKOFF", "10ms,soon")
	_, err := Load()
	assert.ErrorContains(t, err, "TX_RETRY_BACKOFF")
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\nSWEEP_SCHEDULE=@hourly\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("SWEEP_SCHEDULE", "")
	require.NoError(t, os.Unsetenv("SWEEP_SCHEDULE"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, ":7000", os.Getenv("HTTP_ADDR"))
	assert.Equal(t, "@hourly", os.Getenv("SWEEP_SCHEDULE"))
}

func TestLoadReportsEveryBadValue(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "cassandra")
	t.Setenv("EVENTS_BROKER", "none")
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("SWEEP_ENABLED", "maybe")
	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "REDIS_DB")
	assert.ErrorContains(t, err, "SWEEP_ENABLED")
	assert.ErrorContains(t, err, "cassandra")
}

func TestLoadSplitsKafkaBrokers(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("EVENTS_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
