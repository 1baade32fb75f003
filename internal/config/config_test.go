package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, env := range []string{"DATABASE_URL", "JWT_SECRET", "KAFKA_BROKERS", "SERVER_PORT"} {
		t.Setenv(env, "")
	}

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 4, cfg.Validation.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Reservations.SweepInterval)
	assert.Equal(t, 168*time.Hour, cfg.Reservations.DefaultTTL)
	assert.Equal(t, "stock-events", cfg.Kafka.Topic)
	assert.False(t, cfg.KafkaEnabled())

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "9000"
database:
  url: postgres://file/db
  lockTimeout: 2s
jwt:
  secret: from-file
reservations:
  defaultTTL: 24h
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("VALIDATION_MAX_ATTEMPTS", "7")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("RESERVATION_SWEEP_INTERVAL", "30s")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, 2*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 7, cfg.Validation.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Reservations.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Reservations.DefaultTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}
