// Package gateway is the HTTP surface of the indicator query service. It
// authenticates the caller, parses query parameters into an orchestrator
// request, and maps pipeline errors to HTTP status codes.
package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/indicator"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/logger"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/query"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/store/redis"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/tier"
)

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, svc *query.Service, auth Authenticator, log *slog.Logger) {
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, "not_found", "no such route")
			return
		}
		SetCORS(w)
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "indicator query service",
			"usage":   "GET /api/indicators/{symbol}?indicator_name=sma&start=2023-01-01&end=2023-01-31&window=5",
		})
	})

	// GET /api/indicators/{symbol}
	mux.HandleFunc("/api/indicators/", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
			return
		}

		id, err := auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		ctx := logger.WithTraceID(r.Context(), logger.NewTraceID(id.Subject, time.Now()))

		symbol := strings.TrimPrefix(r.URL.Path, "/api/indicators/")
		if symbol == "" || strings.Contains(symbol, "/") {
			writeError(w, http.StatusBadRequest, "bad_request", "path must be /api/indicators/{symbol}")
			return
		}

		req, perr := parseRequest(symbol, r)
		if perr != "" {
			writeError(w, http.StatusBadRequest, "bad_request", perr)
			return
		}

		res, err := svc.Query(ctx, id, req)
		if err != nil {
			status, code := mapError(err)
			if status >= http.StatusInternalServerError {
				log.ErrorContext(ctx, "query failed", append(logger.Trace(ctx), "symbol", symbol, "err", err)...)
			}
			writeError(w, status, code, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

// parseRequest builds the orchestrator request from query parameters.
// Returns a non-empty message on malformed input.
func parseRequest(symbol string, r *http.Request) (query.Request, string) {
	q := r.URL.Query()

	name := q.Get("indicator_name")
	if name == "" {
		return query.Request{}, "indicator_name is required"
	}

	start, err := model.ParseDate(q.Get("start"))
	if err != nil {
		return query.Request{}, "start must be a YYYY-MM-DD date"
	}
	end, err := model.ParseDate(q.Get("end"))
	if err != nil {
		return query.Request{}, "end must be a YYYY-MM-DD date"
	}

	window, ok := intParam(q, "window")
	if !ok {
		return query.Request{}, "window must be an integer"
	}
	fast, ok := intParam(q, "fast_period")
	if !ok {
		return query.Request{}, "fast_period must be an integer"
	}
	slow, ok := intParam(q, "slow_period")
	if !ok {
		return query.Request{}, "slow_period must be an integer"
	}
	signal, ok := intParam(q, "signal_period")
	if !ok {
		return query.Request{}, "signal_period must be an integer"
	}
	useCache, ok := boolParam(q, "cache", true)
	if !ok {
		return query.Request{}, "cache must be a boolean"
	}

	return query.Request{
		Symbol:       symbol,
		Indicator:    name,
		Start:        start,
		End:          end,
		Window:       window,
		FastPeriod:   fast,
		SlowPeriod:   slow,
		SignalPeriod: signal,
		UseCache:     useCache,
	}, ""
}

// mapError translates pipeline errors to an HTTP status and a stable code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, query.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, indicator.ErrRangeExceeded):
		return http.StatusForbidden, "range_exceeded"
	case errors.Is(err, query.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, tier.ErrUnknownTier):
		return http.StatusBadRequest, "unknown_tier"
	case errors.Is(err, indicator.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, indicator.ErrMissingParameters):
		return http.StatusBadRequest, "missing_parameters"
	case errors.Is(err, redis.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
