// Package query implements the request orchestrator: permission check →
// cache lookup → compute on miss → cache write → rate-limit evaluation →
// response shaping.
//
// Every successful response, cached or freshly computed, costs exactly one
// rate-limit evaluation, and that evaluation happens strictly after the
// cache decision — a cache hit still consumes quota.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/concurrency"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/indicator"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/logger"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/metrics"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/ratelimit"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/tier"
)

var (
	// ErrForbidden is returned when the tier does not permit the indicator.
	ErrForbidden = errors.New("indicator not permitted for tier")

	// ErrRateLimited is returned when the daily quota is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// defaultCacheTTL bounds a cache entry's lifetime; after this it is evicted
// and the result must be recomputed.
const defaultCacheTTL = 3600 * time.Second

// CacheStore is the response cache the orchestrator consults. Injected so
// tests can run against an in-memory double.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, payload string, ttl time.Duration) error
}

// Request is one indicator query. Identity is carried separately — it comes
// from the external authentication collaborator, not the request body.
type Request struct {
	Symbol       string
	Indicator    string
	Start        model.Date
	End          model.Date
	Window       int
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
	UseCache     bool
}

// Result is a successful response: the serialized rows plus the remaining
// daily quota. Data is raw JSON so a cached payload round-trips
// byte-identically.
type Result struct {
	Data      json.RawMessage `json:"data"`
	Remaining tier.Quota      `json:"remaining_queries"`
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Catalog *tier.Catalog
	Engine  *indicator.Engine
	Cache   CacheStore
	Limiter *ratelimit.Limiter
	Pool    *concurrency.Pool
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional

	CacheTTL time.Duration // defaults to an hour

	// CacheFailClosed fails the request when the cache store errors.
	// Default is fail-open: the error is logged and counted, and the
	// request proceeds as a miss.
	CacheFailClosed bool
}

// Service orchestrates one externally visible operation: Query.
type Service struct {
	catalog    *tier.Catalog
	engine     *indicator.Engine
	cache      CacheStore
	limiter    *ratelimit.Limiter
	pool       *concurrency.Pool
	log        *slog.Logger
	prom       *metrics.Metrics
	cacheTTL   time.Duration
	failClosed bool
}

// NewService creates the orchestrator.
func NewService(cfg Config) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		catalog:    cfg.Catalog,
		engine:     cfg.Engine,
		cache:      cfg.Cache,
		limiter:    cfg.Limiter,
		pool:       cfg.Pool,
		log:        log,
		prom:       cfg.Metrics,
		cacheTTL:   ttl,
		failClosed: cfg.CacheFailClosed,
	}
}

// Query serves one indicator request for an authenticated identity.
func (s *Service) Query(ctx context.Context, id model.Identity, req Request) (*Result, error) {
	res, status, err := s.query(ctx, id, req)
	if s.prom != nil {
		s.prom.RequestsTotal.WithLabelValues(req.Indicator, status).Inc()
	}
	return res, err
}

func (s *Service) query(ctx context.Context, id model.Identity, req Request) (*Result, string, error) {
	tc, err := s.catalog.Resolve(id.Tier)
	if err != nil {
		return nil, "unknown_tier", err
	}

	// Permission check against the same closed enum the engine dispatches
	// on; an unknown indicator name is permitted for no tier. Neither the
	// cache nor the rate limiter is touched on this path.
	ind, known := tier.ParseIndicator(req.Indicator)
	if !known || !tc.Allows(ind) {
		return nil, "forbidden", fmt.Errorf("%w: %s for tier %s", ErrForbidden, req.Indicator, tc.Name)
	}

	key := cacheKey(req.Symbol, req.Start, req.End, tc.Name, req.Window)

	if req.UseCache {
		payload, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			if s.prom != nil {
				s.prom.CacheErrors.Inc()
			}
			if s.failClosed {
				return nil, "store_error", fmt.Errorf("cache lookup: %w", err)
			}
			s.log.WarnContext(ctx, "cache lookup failed, proceeding as miss", append(logger.Trace(ctx), "key", key, "err", err)...)
		}
		if ok {
			dec, err := s.limiter.Check(ctx, id.Subject, tc)
			if err != nil {
				return nil, "store_error", err
			}
			if !dec.Allowed {
				if s.prom != nil {
					s.prom.RateLimitRejections.Inc()
				}
				return nil, "rate_limited", ErrRateLimited
			}
			if s.prom != nil {
				s.prom.CacheHits.Inc()
			}
			return &Result{Data: json.RawMessage(payload), Remaining: dec.Remaining}, "ok_cached", nil
		}
	}
	if s.prom != nil {
		s.prom.CacheMisses.Inc()
	}

	// Filter and compute off the intake goroutine; the pool bounds
	// CPU-bound work so slow computations don't stall other callers.
	var rows []model.ResultRow
	started := time.Now()
	err = s.pool.Do(ctx, func() error {
		filtered, err := s.engine.Filter(ctx, req.Symbol, req.Start, req.End, tc)
		if err != nil {
			return err
		}
		rows, err = s.engine.Compute(ind, filtered, indicator.Params{
			Window:       req.Window,
			FastPeriod:   req.FastPeriod,
			SlowPeriod:   req.SlowPeriod,
			SignalPeriod: req.SignalPeriod,
		})
		return err
	})
	if s.prom != nil {
		s.prom.ComputeDur.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, computeStatus(err), err
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, "error", fmt.Errorf("encode result: %w", err)
	}

	// Cache writes are idempotent per key, so a failure here degrades
	// performance, not correctness. It is logged and counted rather than
	// failing the fresh result. The original wrote the cache even when the
	// caller bypassed the read; that behavior is kept.
	if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil {
		if s.prom != nil {
			s.prom.CacheErrors.Inc()
		}
		s.log.ErrorContext(ctx, "cache write failed", append(logger.Trace(ctx), "key", key, "err", err)...)
	}

	dec, err := s.limiter.Check(ctx, id.Subject, tc)
	if err != nil {
		return nil, "store_error", err
	}
	if !dec.Allowed {
		if s.prom != nil {
			s.prom.RateLimitRejections.Inc()
		}
		return nil, "rate_limited", ErrRateLimited
	}

	return &Result{Data: payload, Remaining: dec.Remaining}, "ok_computed", nil
}

// cacheKey is the deterministic composite the cache is keyed on. The tier is
// part of the key: tiers with different lookback authorization must never
// share entries for the same symbol/date pair.
func cacheKey(symbol string, start, end model.Date, name tier.Name, window int) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", symbol, start, end, name, window)
}

func computeStatus(err error) string {
	switch {
	case errors.Is(err, indicator.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, indicator.ErrRangeExceeded):
		return "range_exceeded"
	case errors.Is(err, indicator.ErrMissingParameters):
		return "missing_parameters"
	default:
		return "error"
	}
}
