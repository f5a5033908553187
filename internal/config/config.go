package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DefaultLedgerRPCURL = "https://fullnode.testnet.sui.io:443"

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string

	// Providers is the ordered weather provider chain.
	Providers []string `validate:"min=1,dive,oneof=openweather openmeteo weatherapi"`

	// Ledger settlement.
	LedgerRPCURL   string `validate:"required,url"`
	PackageID      string
	AdminCap       string
	AdminSecretKey string
	GasBudget      uint64 `validate:"gt=0"`

	// PollInterval controls how often every tracked oracle is re-settled.
	PollInterval time.Duration `validate:"gt=0"`
	// RecordDelay is the pause between two records within one tick.
	RecordDelay time.Duration `validate:"gte=0"`
	PageSize    int           `validate:"gt=0"`

	MaxConsecutiveFailures int `validate:"gte=0"` // 0 = retry forever
	// ResettleEnded keeps polling records after ended=true was confirmed.
	ResettleEnded bool

	HTTPTimeout time.Duration `validate:"gt=0"`

	// DatabaseURL selects the postgres store; empty keeps records in memory.
	DatabaseURL string

	Port      string `validate:"required,numeric"`
	LogLevel  string
	LogFormat string `validate:"oneof=console json"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.Providers = splitList(getenvDefault("WEATHER_PROVIDERS", "openweather"))

	cfg.LedgerRPCURL = getenvDefault("LEDGER_RPC_URL", DefaultLedgerRPCURL)
	cfg.PackageID = os.Getenv("PACKAGE_ID")
	cfg.AdminCap = os.Getenv("ADMIN_CAP")
	cfg.AdminSecretKey = os.Getenv("ADMIN_SECRET_KEY")
	if cfg.AdminSecretKey == "" {
		cfg.AdminSecretKey = os.Getenv("ADMIN_PHRASE")
	}

	budget, err := strconv.ParseUint(getenvDefault("LEDGER_GAS_BUDGET", "10000000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_GAS_BUDGET: %w", err)
	}
	cfg.GasBudget = budget

	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	if cfg.RecordDelay, err = getenvDuration("RECORD_DELAY", "1s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}

	cfg.PageSize = getenvInt("POLL_PAGE_SIZE", 100)
	cfg.MaxConsecutiveFailures = getenvInt("MAX_CONSECUTIVE_FAILURES", 0)
	cfg.ResettleEnded = getenvBool("RESETTLE_ENDED", true)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Port = getenvDefault("PORT", "3000")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "console"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LedgerConfigured reports whether the settlement credentials are present.
func (c *AppConfig) LedgerConfigured() bool {
	return c.PackageID != "" && c.AdminCap != "" && c.AdminSecretKey != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
