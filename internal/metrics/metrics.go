// Package metrics exposes Prometheus metrics and health probes for the
// indicator query service.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the query pipeline.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec // labels: indicator, status

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter

	ComputeDur prometheus.Histogram

	RateLimitRejections prometheus.Counter

	StoreBreakerTrips prometheus.Counter
	StoreBreakerOpen  prometheus.Gauge // 1 while the breaker is open or half-open
}

// NewMetrics registers and returns all metrics. Call once per process.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queryd_requests_total",
			Help: "Indicator requests by indicator and outcome",
		}, []string{"indicator", "status"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queryd_cache_hits_total",
			Help: "Requests served from the response cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queryd_cache_misses_total",
			Help: "Requests that required a fresh computation",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queryd_cache_errors_total",
			Help: "Cache store failures (distinct from misses)",
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "queryd_compute_duration_seconds",
			Help:    "Indicator computation latency (filter + compute)",
			Buckets: prometheus.DefBuckets,
		}),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queryd_rate_limit_rejections_total",
			Help: "Requests rejected with an exhausted daily quota",
		}),
		StoreBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queryd_store_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		StoreBreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queryd_store_breaker_open",
			Help: "Redis circuit breaker state (0=closed, 1=open/half-open)",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.CacheHits,
		m.CacheMisses,
		m.CacheErrors,
		m.ComputeDur,
		m.RateLimitRejections,
		m.StoreBreakerTrips,
		m.StoreBreakerOpen,
	)

	return m
}

// ObserveBreaker is a redis.Breaker OnStateChange hook.
func (m *Metrics) ObserveBreaker(from, to string) {
	if to == "open" {
		m.StoreBreakerTrips.Inc()
	}
	if to == "closed" {
		m.StoreBreakerOpen.Set(0)
	} else {
		m.StoreBreakerOpen.Set(1)
	}
}

// HealthStatus tracks dependency health for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool
	RedisLatencyMs float64
	OHLCTableOK    bool
	OHLCLatencyMs  float64
	LastCheckAt    time.Time
	StartedAt      time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckOHLC pings the OHLC database and records latency and health.
func (h *HealthStatus) CheckOHLC(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.OHLCTableOK = err == nil
	h.OHLCLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency probes until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if db != nil {
					h.CheckOHLC(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overall := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.OHLCTableOK {
		overall = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.OHLCTableOK {
		overall = "unhealthy"
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		OHLCTableOK    bool    `json:"ohlc_table_ok"`
		OHLCLatencyMs  float64 `json:"ohlc_latency_ms"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overall,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		OHLCTableOK:    h.OHLCTableOK,
		OHLCLatencyMs:  h.OHLCLatencyMs,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
