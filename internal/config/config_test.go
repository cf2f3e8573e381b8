package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "helpdesk-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())

	assert.Equal(t, "* * * * *", cfg.Assignment.SweepSchedule)
	assert.True(t, cfg.Assignment.SweepEnabled)
	assert.Equal(t, 15*time.Minute, cfg.Assignment.AgingDeadline())
	assert.Equal(t, "Other", cfg.Assignment.FallbackCategory)

	assert.Equal(t, "helpdesk:events", cfg.Redis.EventChannel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ASSIGN_SWEEP_SCHEDULE", "*/5 * * * *")
	t.Setenv("ASSIGN_SWEEP_ENABLED", "false")
	t.Setenv("ASSIGN_AGING_DEADLINE_MINUTES", "30")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, "*/5 * * * *", cfg.Assignment.SweepSchedule)
	assert.False(t, cfg.Assignment.SweepEnabled)
	assert.Equal(t, 30*time.Minute, cfg.Assignment.AgingDeadline())
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadRejectsNonPositiveAgingDeadline(t *testing.T) {
	t.Setenv("ASSIGN_AGING_DEADLINE_MINUTES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestRequestTimeoutDisabledWhenNonPositive(t *testing.T) {
	app := AppConfig{RequestTimeoutSeconds: 0}
	assert.Equal(t, time.Duration(0), app.RequestTimeout())
}
