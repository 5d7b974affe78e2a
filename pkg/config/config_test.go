package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddress)
	assert.Equal(t, time.Hour, cfg.Server.RefreshInterval)
	assert.Equal(t, "loans.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, uint32(5), cfg.Events.BreakerFailures)
	assert.Equal(t, 7, cfg.Dashboard.UpcomingWindowDays)
	assert.Equal(t, 5, cfg.Dashboard.UpcomingLimit)
	assert.Equal(t, 0, cfg.Dashboard.OverdueLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Dashboard.UpcomingWindow())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
server:
  address: ":7000"
  refresh_interval: 15m
database:
  path: /var/lib/loans/ledger.db
logging:
  level: debug
  format: console
events:
  enabled: true
  url: amqp://rabbit:5672/
dashboard:
  upcoming_limit: 10
  overdue_limit: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, 15*time.Minute, cfg.Server.RefreshInterval)
	assert.Equal(t, "/var/lib/loans/ledger.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "amqp://rabbit:5672/", cfg.Events.URL)
	assert.Equal(t, "loan_ledger", cfg.Events.Exchange, "unset keys keep their defaults")
	assert.Equal(t, 10, cfg.Dashboard.UpcomingLimit)
	assert.Equal(t, 20, cfg.Dashboard.OverdueLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LOANLEDGER_SERVER_ADDRESS", ":9999")
	t.Setenv("LOANLEDGER_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("LOANLEDGER_DASHBOARD_UPCOMING_LIMIT", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Dashboard.UpcomingLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadRejectsZeroShutdownTimeout(t *testing.T) {
	t.Setenv("LOANLEDGER_SERVER_SHUTDOWN_TIMEOUT", "0s")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.shutdown_timeout")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Config{}
	cfg.Server.RefreshInterval = -time.Second
	cfg.Logging.Level = "loud"
	cfg.Events.Enabled = true
	cfg.Dashboard.OverdueLimit = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"server.address",
		"server.refresh_interval",
		"server.shutdown_timeout",
		"database.path",
		"loud",
		"events.url",
		"dashboard.upcoming_window_days",
		"dashboard.upcoming_limit",
		"dashboard.overdue_limit",
	} {
		assert.Contains(t, err.Error(), want)
	}
}
