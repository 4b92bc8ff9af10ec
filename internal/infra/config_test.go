package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL, "database is optional")
	assert.Equal(t, 8, cfg.DBMaxConns)
	assert.Equal(t, 5*time.Second, cfg.HTTPReadHeaderTimeout)
	assert.Equal(t, 2, cfg.SchedulerCapacity)
	assert.Equal(t, time.Second, cfg.ProgressTick)
	assert.True(t, cfg.SimulateWorker)
	assert.Equal(t, 60, cfg.RateLimitPerMin)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsZeroCapacity(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SCHEDULER_CAPACITY", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsZeroDBConns(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_MAX_CONNS", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SCHEDULER_CAPACITY", "8")
	t.Setenv("PROGRESS_TICK_MS", "250")
	t.Setenv("SIMULATE_WORKER", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.SchedulerCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.ProgressTick)
	assert.False(t, cfg.SimulateWorker)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
