// queryd serves tier-gated technical indicator queries over HTTP.
//
// It reads historical closes from a SQLite OHLC table, computes indicators on
// a bounded worker pool, caches responses in Redis, and enforces per-identity
// daily quotas with fixed UTC-day windows.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/config"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/concurrency"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/gateway"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/indicator"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/logger"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/metrics"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/ohlc"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/query"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/ratelimit"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/store/redis"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/tier"
)

func main() {
	cfg := config.Load()
	log := logger.Init("queryd", slog.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	prom := metrics.NewMetrics()

	store, err := redis.New(redis.Config{
		Addr:               cfg.RedisAddr,
		Password:           cfg.RedisPassword,
		DB:                 cfg.RedisDB,
		BreakerMaxFailures: 5,
		BreakerCooldown:    30 * time.Second,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()
	if b := store.Breaker(); b != nil {
		b.OnStateChange = prom.ObserveBreaker
	}

	table, err := ohlc.OpenSQLite(cfg.OHLCPath)
	if err != nil {
		log.Error("ohlc table open failed", "path", cfg.OHLCPath, "err", err)
		os.Exit(1)
	}
	defer table.Close()

	catalog := tier.Default()
	if cfg.TierFile != "" {
		catalog, err = tier.LoadFile(cfg.TierFile)
		if err != nil {
			log.Error("tier catalog load failed", "path", cfg.TierFile, "err", err)
			os.Exit(1)
		}
		log.Info("tier catalog loaded from file", "path", cfg.TierFile)
	}

	pool := concurrency.NewPool(cfg.Workers, log)
	pool.Start(ctx)
	defer pool.Stop()

	svc := query.NewService(query.Config{
		Catalog:         catalog,
		Engine:          indicator.NewEngine(table, cfg.ExactCalendarLookback),
		Cache:           store.Cache(),
		Limiter:         ratelimit.New(store.Counters(), cfg.AtomicCounters),
		Pool:            pool,
		Logger:          log,
		Metrics:         prom,
		CacheTTL:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
		CacheFailClosed: cfg.CacheFailClosed,
	})

	tokens := cfg.ParseTokens()
	if len(tokens) == 0 {
		log.Error("no valid API tokens configured")
		os.Exit(1)
	}

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, svc, gateway.StaticTokens(tokens), log)

	health := metrics.NewHealthStatus()
	health.CheckRedis(ctx, store.Raw())
	health.CheckOHLC(ctx, table.DB())
	health.StartLivenessChecker(ctx, store.Raw(), table.DB(), 15*time.Second)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Info("queryd stopped")
}
