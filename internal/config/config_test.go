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

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Sync.StaleLockAfter)
	assert.True(t, cfg.Sync.Attributes)
	assert.Empty(t, cfg.Sync.Cron)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SYNC_CRON", "0 */15 * * * *")
	t.Setenv("SYNC_CONCURRENCY", "8")
	t.Setenv("SYNC_STALE_LOCK_AFTER", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REMOTE_INSECURE_TLS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "0 */15 * * * *", cfg.Sync.Cron)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Sync.StaleLockAfter)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Remote.InsecureSkipVerify)
}
