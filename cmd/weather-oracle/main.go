package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/weather-oracle/internal/api/http"
	"github.com/i474232898/weather-oracle/internal/config"
	"github.com/i474232898/weather-oracle/internal/domain"
	"github.com/i474232898/weather-oracle/internal/ledger"
	"github.com/i474232898/weather-oracle/internal/logging"
	"github.com/i474232898/weather-oracle/internal/oracle"
	"github.com/i474232898/weather-oracle/internal/scheduler"
	"github.com/i474232898/weather-oracle/internal/store"
	"github.com/i474232898/weather-oracle/internal/weather"
	"github.com/i474232898/weather-oracle/internal/weather/providers"
)

func main() {
	logging.Configure("info", "console")

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider and ledger calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker), tried in order.
	provs, err := providers.Build(cfg.Providers, httpClient, providers.Keys{
		OpenWeather: cfg.OpenWeatherAPIKey,
		WeatherAPI:  cfg.WeatherAPIKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build weather providers")
	}
	// Geocoding always goes through OpenWeather.
	geocoder := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey)
	weatherSvc := weather.NewService(provs, geocoder)

	var repo domain.OracleRepository
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres store")
		}
		defer pg.Close()
		repo = pg
		log.Info().Msg("tracking oracles in postgres")
	} else {
		repo = store.NewMemoryStore()
		log.Warn().Msg("DATABASE_URL not set; tracked oracles are kept in memory and lost on restart")
	}

	var settlement oracle.Ledger
	if cfg.LedgerConfigured() {
		signer, err := ledger.ParseSecretKey(cfg.AdminSecretKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse admin key")
		}
		client, err := ledger.NewClient(ledger.Config{
			RPCURL:    cfg.LedgerRPCURL,
			PackageID: cfg.PackageID,
			AdminCap:  cfg.AdminCap,
			GasBudget: cfg.GasBudget,
			RetryMax:  3,
		}, signer, httpClient)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create ledger client")
		}
		if err := client.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("ledger full node unreachable; settlements will be retried")
		}
		settlement = client
		log.Info().Str("admin", client.Address()).Str("rpc", cfg.LedgerRPCURL).Msg("ledger client ready")
	} else {
		log.Warn().Msg("PACKAGE_ID, ADMIN_CAP or ADMIN_SECRET_KEY missing; oracle creation and settlement disabled")
	}

	oracleSvc := oracle.NewService(repo, weatherSvc, settlement, oracle.Options{
		RecordDelay:            cfg.RecordDelay,
		PageSize:               cfg.PageSize,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		StopWhenSettled:        !cfg.ResettleEnded,
		CallTimeout:            cfg.HTTPTimeout,
	})

	// Poller that periodically settles every tracked oracle.
	sched := scheduler.New(cfg.PollInterval, oracleSvc)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               httpapi.ServiceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// creation waits for a weather lookup and a ledger round trip
		WriteTimeout: 3*cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${status} - ${method} ${path} (${latency})\n",
		Output: logging.WithComponent("http"),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	httpapi.RegisterRoutes(app, oracleSvc, weatherSvc)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
