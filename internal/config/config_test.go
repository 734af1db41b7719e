package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/colepay")
	t.Setenv("BANK_BASE_URL", "https://bank.example")
	t.Setenv("BANK_CLIENT_GUID", "guid-123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.BankTimeout)
	assert.Equal(t, "0 3 * * *", cfg.ReconcileSchedule)
}

func TestLoadRequiresDBSource(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_SOURCE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresBankSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("BANK_CLIENT_GUID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadCustomTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("BANK_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.BankTimeout)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("BANK_TIMEOUT_SECONDS", "soon")

	_, err := Load()
	assert.Error(t, err)
}
