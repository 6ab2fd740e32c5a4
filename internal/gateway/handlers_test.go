package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/concurrency"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/indicator"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/ohlc"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/query"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/ratelimit"
	"github.com/Gurupranav-tech/kalpi-assignment/internal/tier"
)

type fakeCache struct{ data map[string]string }

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key, payload string, _ time.Duration) error {
	f.data[key] = payload
	return nil
}

type fakeCounters struct{ values map[string]int64 }

func (f *fakeCounters) Get(_ context.Context, key string) (int64, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCounters) Create(_ context.Context, key string, _ time.Duration) error {
	f.values[key] = 1
	return nil
}

func (f *fakeCounters) Incr(_ context.Context, key string) (int64, error) {
	f.values[key]++
	return f.values[key], nil
}

func (f *fakeCounters) CheckAndIncr(_ context.Context, key string, quota int64, _ time.Duration) (bool, int64, error) {
	v, ok := f.values[key]
	if !ok {
		f.values[key] = 1
		return true, 1, nil
	}
	if v >= quota {
		return false, 0, nil
	}
	f.values[key]++
	return true, f.values[key], nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	var rows []model.OHLCRow
	day := model.NewDate(2023, time.January, 1)
	for i := 0; i < 60; i++ {
		rows = append(rows, model.OHLCRow{
			Symbol: "AAPL",
			Date:   model.Date{Time: day.AddDate(0, 0, i)},
			Close:  100 + float64(i),
		})
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := concurrency.NewPool(2, log)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() { cancel(); pool.Stop() })

	svc := query.NewService(query.Config{
		Catalog: tier.Default(),
		Engine:  indicator.NewEngine(ohlc.NewMemoryTable(rows), false),
		Cache:   &fakeCache{data: make(map[string]string)},
		Limiter: ratelimit.New(&fakeCounters{values: make(map[string]int64)}, false),
		Pool:    pool,
		Logger:  log,
	})

	auth := StaticTokens{
		"tok-free": {Subject: "alice", Tier: "free"},
		"tok-pro":  {Subject: "bob", Tier: "pro"},
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, svc, auth, log)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, token, path string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

const smaPath = "/api/indicators/AAPL?indicator_name=sma&start=2023-01-01&end=2023-01-31&window=5"

func TestIndicators_OK(t *testing.T) {
	srv := newTestServer(t)

	status, body := get(t, srv, "tok-free", smaPath)
	if status != http.StatusOK {
		t.Fatalf("status=%d body=%s", status, body)
	}

	var res struct {
		Data      []map[string]any `json:"data"`
		Remaining json.RawMessage  `json:"remaining_queries"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 31 {
		t.Errorf("expected 31 rows, got %d", len(res.Data))
	}
	if string(res.Remaining) != "49" {
		t.Errorf("remaining_queries=%s, want 49", res.Remaining)
	}
}

func TestIndicators_Unauthorized(t *testing.T) {
	srv := newTestServer(t)

	for _, token := range []string{"", "bogus"} {
		status, _ := get(t, srv, token, smaPath)
		if status != http.StatusUnauthorized {
			t.Errorf("token %q: status=%d, want 401", token, status)
		}
	}
}

func TestIndicators_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		token  string
		path   string
		status int
		code   string
	}{
		{
			name:   "indicator outside tier",
			token:  "tok-free",
			path:   "/api/indicators/AAPL?indicator_name=rsi&start=2023-01-01&end=2023-01-31&window=14",
			status: http.StatusForbidden,
			code:   "forbidden",
		},
		{
			name:   "lookback beyond tier",
			token:  "tok-free",
			path:   "/api/indicators/AAPL?indicator_name=sma&start=2022-01-01&end=2023-01-31&window=5",
			status: http.StatusForbidden,
			code:   "range_exceeded",
		},
		{
			name:   "start after end",
			token:  "tok-free",
			path:   "/api/indicators/AAPL?indicator_name=sma&start=2023-01-31&end=2023-01-01&window=5",
			status: http.StatusBadRequest,
			code:   "invalid_range",
		},
		{
			name:   "macd without all periods",
			token:  "tok-pro",
			path:   "/api/indicators/AAPL?indicator_name=macd&start=2023-01-01&end=2023-01-31&fast_period=12",
			status: http.StatusBadRequest,
			code:   "missing_parameters",
		},
		{
			name:   "malformed date",
			token:  "tok-free",
			path:   "/api/indicators/AAPL?indicator_name=sma&start=January&end=2023-01-31&window=5",
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "missing indicator name",
			token:  "tok-free",
			path:   "/api/indicators/AAPL?start=2023-01-01&end=2023-01-31&window=5",
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv, tt.token, tt.path)
			if status != tt.status {
				t.Fatalf("status=%d body=%s, want %d", status, body, tt.status)
			}
			var e ErrorBody
			if err := json.Unmarshal(body, &e); err != nil {
				t.Fatal(err)
			}
			if e.Code != tt.code {
				t.Errorf("code=%q, want %q", e.Code, tt.code)
			}
		})
	}
}

func TestIndicators_RateLimited(t *testing.T) {
	srv := newTestServer(t)

	var last int
	for i := 0; i < 51; i++ {
		last, _ = get(t, srv, "tok-free", smaPath)
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("51st request status=%d, want 429", last)
	}
}

func TestIndicators_CacheBypassParam(t *testing.T) {
	srv := newTestServer(t)

	status, body := get(t, srv, "tok-pro", smaPath+"&cache=false")
	if status != http.StatusOK {
		t.Fatalf("status=%d body=%s", status, body)
	}
}
