package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "k")
	t.Setenv("WEATHER_PROVIDERS", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("RECORD_DELAY", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"openweather"}, cfg.Providers)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.RecordDelay)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 0, cfg.MaxConsecutiveFailures)
	assert.True(t, cfg.ResettleEnded)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, DefaultLedgerRPCURL, cfg.LedgerRPCURL)
	assert.Equal(t, uint64(10000000), cfg.GasBudget)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEATHER_PROVIDERS", " OpenMeteo , weatherapi ")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("RECORD_DELAY", "0s")
	t.Setenv("MAX_CONSECUTIVE_FAILURES", "5")
	t.Setenv("RESETTLE_ENDED", "false")
	t.Setenv("ADMIN_SECRET_KEY", "")
	t.Setenv("ADMIN_PHRASE", "legacy")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"openmeteo", "weatherapi"}, cfg.Providers)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.RecordDelay)
	assert.Equal(t, 5, cfg.MaxConsecutiveFailures)
	assert.False(t, cfg.ResettleEnded)
	assert.Equal(t, "legacy", cfg.AdminSecretKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad interval":     {"POLL_INTERVAL", "soon"},
		"zero interval":    {"POLL_INTERVAL", "0s"},
		"unknown provider": {"WEATHER_PROVIDERS", "darksky"},
		"bad budget":       {"LEDGER_GAS_BUDGET", "-1"},
		"bad log format":   {"LOG_FORMAT", "xml"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLedgerConfigured(t *testing.T) {
	cfg := &AppConfig{PackageID: "0x1", AdminCap: "0x2"}
	assert.False(t, cfg.LedgerConfigured())
	cfg.AdminSecretKey = "suiprivkey1..."
	assert.True(t, cfg.LedgerConfigured())
}
