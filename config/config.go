// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP surfaces
	HTTPAddr    string
	MetricsAddr string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OHLCPath      string

	// Tier catalog override file; empty means built-in defaults.
	TierFile string

	// API tokens, comma-separated "token:subject:tier" triples.
	APITokens string

	// Pipeline tuning
	CacheTTLSeconds int
	Workers         int

	// AtomicCounters enables the Lua check-and-increment rate-limit path,
	// which closes the read/increment race under concurrent requests.
	AtomicCounters bool

	// CacheFailClosed fails requests on cache store errors instead of
	// recomputing.
	CacheFailClosed bool

	// ExactCalendarLookback uses calendar months for lookback authorization
	// instead of the 30-day-month approximation.
	ExactCalendarLookback bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		OHLCPath:      getEnv("OHLC_PATH", "data/ohlc.db"),

		TierFile:  getEnv("TIER_FILE", ""),
		APITokens: mustEnv("API_TOKENS"),

		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 3600),
		Workers:         getEnvInt("WORKERS", 8),

		AtomicCounters:        getEnvBool("ATOMIC_COUNTERS", false),
		CacheFailClosed:       getEnvBool("CACHE_FAIL_CLOSED", false),
		ExactCalendarLookback: getEnvBool("EXACT_CALENDAR_LOOKBACK", false),
	}
}

// ParseTokens parses the APITokens string into a token → identity table.
// Malformed entries are skipped with a warning.
func (c *Config) ParseTokens() map[string]model.Identity {
	out := make(map[string]model.Identity)
	for _, entry := range strings.Split(c.APITokens, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			log.Printf("[config] skipping malformed token entry: %q", entry)
			continue
		}
		out[parts[0]] = model.Identity{Subject: parts[1], Tier: parts[2]}
	}
	return out
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
