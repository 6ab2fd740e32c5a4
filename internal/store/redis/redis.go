// Package redis implements the shared Redis-backed stores behind the query
// pipeline: the response cache and the daily rate counters. Both sit on one
// client so the breaker and health probes see the store as a whole.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Breaker settings; zero values disable the breaker.
	BreakerMaxFailures int
	BreakerCooldown    time.Duration
}

// Client is the shared store client. Use Cache() and Counters() for the
// typed views the pipeline consumes.
type Client struct {
	client  *goredis.Client
	breaker *Breaker
}

// New creates a Client and pings the server.
func New(cfg Config) (*Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	c := &Client{client: client}
	if cfg.BreakerMaxFailures > 0 {
		c.breaker = NewBreaker(cfg.BreakerMaxFailures, cfg.BreakerCooldown)
	}

	slog.Info("connected to redis", "addr", cfg.Addr, "db", cfg.DB)
	return c, nil
}

// Raw returns the underlying go-redis client for health probes.
func (c *Client) Raw() *goredis.Client { return c.client }

// Breaker returns the circuit breaker, or nil when disabled.
func (c *Client) Breaker() *Breaker { return c.breaker }

// Cache returns the response-cache view.
func (c *Client) Cache() *Cache { return &Cache{c} }

// Counters returns the rate-counter view.
func (c *Client) Counters() *Counters { return &Counters{c} }

// Close closes the client.
func (c *Client) Close() error { return c.client.Close() }

// guard wraps a store call with the breaker, if one is configured.
func (c *Client) guard(op func() error) error {
	if c.breaker == nil {
		return op()
	}
	if !c.breaker.Allow() {
		return ErrStoreUnavailable
	}
	err := op()
	// goredis.Nil is a miss, not a store failure.
	if err == goredis.Nil {
		c.breaker.Record(nil)
	} else {
		c.breaker.Record(err)
	}
	return err
}

// Cache is the response cache: string key to serialized-text value with TTL
// semantics. No computation happens here — values pass through verbatim.
type Cache struct {
	c *Client
}

// Get returns the cached payload for key. The second return is false on a
// miss; a non-nil error means the store itself failed, which is a different
// condition from "not cached".
func (ca *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var payload string
	err := ca.c.guard(func() error {
		var err error
		payload, err = ca.c.client.Get(ctx, key).Result()
		return err
	})
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return payload, true, nil
}

// Set stores payload under key, evicted automatically after ttl.
func (ca *Cache) Set(ctx context.Context, key, payload string, ttl time.Duration) error {
	err := ca.c.guard(func() error {
		return ca.c.client.Set(ctx, key, payload, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Counters is the rate-counter store: string key to integer counter with TTL.
type Counters struct {
	c *Client
}

// Get returns the current counter value. The second return is false when no
// counter exists for the key.
func (co *Counters) Get(ctx context.Context, key string) (int64, bool, error) {
	var n int64
	err := co.c.guard(func() error {
		var err error
		n, err = co.c.client.Get(ctx, key).Int64()
		return err
	})
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis counter get %s: %w", key, err)
	}
	return n, true, nil
}

// Create initializes the counter at 1 with the given TTL.
func (co *Counters) Create(ctx context.Context, key string, ttl time.Duration) error {
	err := co.c.guard(func() error {
		return co.c.client.Set(ctx, key, 1, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis counter create %s: %w", key, err)
	}
	return nil
}

// Incr increments the counter and returns the new value.
func (co *Counters) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := co.c.guard(func() error {
		var err error
		n, err = co.c.client.Incr(ctx, key).Result()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("redis counter incr %s: %w", key, err)
	}
	return n, nil
}

// checkAndIncrScript performs the whole fixed-window step in one atomic
// round trip: create-with-TTL on first use, reject without incrementing at
// the quota, increment otherwise. Returns -1 when rejected.
var checkAndIncrScript = goredis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  redis.call("SET", KEYS[1], 1, "EX", ARGV[2])
  return 1
end
v = tonumber(v)
if v >= tonumber(ARGV[1]) then
  return -1
end
return redis.call("INCR", KEYS[1])
`)

// CheckAndIncr runs the atomic check-and-increment. allowed is false when
// the counter already reached quota; otherwise newValue is the counter
// value after this request.
func (co *Counters) CheckAndIncr(ctx context.Context, key string, quota int64, ttl time.Duration) (allowed bool, newValue int64, err error) {
	var res int64
	gerr := co.c.guard(func() error {
		var err error
		res, err = checkAndIncrScript.Run(ctx, co.c.client, []string{key}, quota, int64(ttl.Seconds())).Int64()
		return err
	})
	if gerr != nil {
		return false, 0, fmt.Errorf("redis counter check %s: %w", key, gerr)
	}
	if res < 0 {
		return false, 0, nil
	}
	return true, res, nil
}
