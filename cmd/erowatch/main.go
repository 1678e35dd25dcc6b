package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/erowatch-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/erowatch-service/internal/adapter/kafka"
	"github.com/couchcryptid/erowatch-service/internal/adapter/notify"
	"github.com/couchcryptid/erowatch-service/internal/adapter/openweather"
	"github.com/couchcryptid/erowatch-service/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/erowatch-service/internal/adapter/redis"
	"github.com/couchcryptid/erowatch-service/internal/config"
	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
	"github.com/couchcryptid/erowatch-service/internal/pipeline"
	"github.com/couchcryptid/erowatch-service/internal/soil"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	resolver := soil.NewResolver(store, cfg.SoilTableTTL, clock, logger, metrics)

	// Forecast enrichment (feature-flagged via FORECAST_ENABLED / OPENWEATHER_API_KEY).
	var forecaster domain.Forecaster
	if cfg.ForecastEnabled {
		client := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.ForecastTimeout, clock, logger, metrics)
		forecaster = openweather.NewCachedForecaster(client, cfg.ForecastCacheTTL, cfg.ForecastTimeout, clock, logger, metrics)
		logger.Info("forecast enrichment enabled", "cache_ttl", cfg.ForecastCacheTTL, "timeout", cfg.ForecastTimeout)
	} else {
		logger.Info("forecast enrichment disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	assessor := pipeline.NewAssessor(store, resolver, forecaster, logger)

	// Store first: a replayed batch lands on ON CONFLICT DO NOTHING.
	loader := pipeline.MultiLoader{store, writer}

	var dedup *redisadapter.Deduper
	if cfg.NotificationsEnabled() {
		notifier, err := notify.New(cfg.NotifyURLs, cfg.NotifyTimeout, logger)
		if err != nil {
			logger.Error("failed to configure notifications", "error", err)
			os.Exit(1)
		}

		var deduper pipeline.Deduper
		if cfg.DedupEnabled() {
			dedup = redisadapter.NewDeduper(redisadapter.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.AlertCooldown, logger)
			deduper = dedup
			logger.Info("alert dedup enabled", "redis_addr", cfg.RedisAddr, "cooldown", cfg.AlertCooldown)
		}

		loader = append(loader, pipeline.NewAlertDispatcher(notifier, deduper, logger, metrics))
		logger.Info("alert notifications enabled", "services", len(cfg.NotifyURLs))
	} else {
		logger.Info("alert notifications disabled")
	}

	p := pipeline.New(reader, assessor, loader, logger, metrics, cfg.BatchSize)
	api := httpadapter.NewAPI(pipeline.NewIngestor(assessor, loader, metrics), store, store, logger)

	ready := httpadapter.ReadinessGroup{store, p}
	if dedup != nil {
		ready = append(ready, dedup)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start assessment pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if dedup != nil {
		if err := dedup.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
}
