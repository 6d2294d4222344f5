package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_DRIVER", "SYNC_ON_STATUS", "SYNC_TIMEOUT", "SYNC_PROBE_TIMEOUT", "SYNC_MAX_RETRIES"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"completed", "processing"}, cfg.Sync.SyncOnStatus)
	assert.Equal(t, 30*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Sync.ProbeTimeout)
	assert.Equal(t, 10, cfg.Sync.MaxRetries)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "/tmp/sync.db")
	t.Setenv("SYNC_ON_STATUS", " completed , , shipped ")
	t.Setenv("SYNC_TIMEOUT", "5s")
	t.Setenv("SYNC_RETRY_BACKOFF_BASE", "1m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"completed", "shipped"}, cfg.Sync.SyncOnStatus)
	assert.Equal(t, 5*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, time.Minute, cfg.Sync.RetryBackoffBase)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SYNC_TIMEOUT", "soon")
	t.Setenv("SYNC_MAX_RETRIES", "many")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, 10, cfg.Sync.MaxRetries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"empty url", func(c *Config) { c.Database.URL = " " }},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"zero timeout", func(c *Config) { c.Sync.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Sync.MaxRetries = -1 }},
		{"negative backoff", func(c *Config) { c.Sync.RetryBackoffBase = -time.Second }},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }},
		{"sample ratio above one", func(c *Config) { c.Observ.SampleRatio = 1.5 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
