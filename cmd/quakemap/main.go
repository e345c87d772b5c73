package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quakemap/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/quakemap/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quakemap/internal/adapter/kafka"
	"github.com/couchcryptid/quakemap/internal/adapter/mapbox"
	"github.com/couchcryptid/quakemap/internal/adapter/tiles"
	"github.com/couchcryptid/quakemap/internal/config"
	"github.com/couchcryptid/quakemap/internal/domain"
	"github.com/couchcryptid/quakemap/internal/mapview"
	"github.com/couchcryptid/quakemap/internal/observability"
	"github.com/couchcryptid/quakemap/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Geocoder is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var (
		publisher pipeline.MarkerPublisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka marker publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	bases := mapview.DefaultBaseLayers()
	var tileHandler http.Handler
	if cfg.TileProxyEnabled {
		cache := tiles.NewCache(cfg.TileCacheSize, cfg.TileCacheTTL, clockwork.NewRealClock())
		tileHandler = tiles.NewProxy(bases, cache, cfg.TileRateLimit, metrics, logger)
		bases = mapview.ProxiedBaseLayers(bases, "/tiles")
		logger.Info("tile proxy enabled", "cache_size", cfg.TileCacheSize, "ttl", cfg.TileCacheTTL)
	}

	feeds := feed.NewClient(cfg.EventsURL, cfg.BoundariesURL, cfg.FetchTimeout, metrics, logger)
	p := pipeline.New(feeds, pipeline.Options{
		Geocoder:   geocoder,
		Publisher:  publisher,
		BaseLayers: bases,
		Interval:   cfg.RefreshInterval,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, tileHandler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
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
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
