package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/tier"
)

// memCounters is an in-memory CounterStore with TTL bookkeeping.
type memCounters struct {
	values  map[string]int64
	expiry  map[string]time.Time
	now     func() time.Time
	gets    int
	creates int
	incrs   int
}

func newMemCounters(now func() time.Time) *memCounters {
	return &memCounters{
		values: make(map[string]int64),
		expiry: make(map[string]time.Time),
		now:    now,
	}
}

func (m *memCounters) expire(key string) {
	if exp, ok := m.expiry[key]; ok && m.now().After(exp) {
		delete(m.values, key)
		delete(m.expiry, key)
	}
}

func (m *memCounters) Get(_ context.Context, key string) (int64, bool, error) {
	m.gets++
	m.expire(key)
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memCounters) Create(_ context.Context, key string, ttl time.Duration) error {
	m.creates++
	m.values[key] = 1
	m.expiry[key] = m.now().Add(ttl)
	return nil
}

func (m *memCounters) Incr(_ context.Context, key string) (int64, error) {
	m.incrs++
	m.expire(key)
	m.values[key]++
	return m.values[key], nil
}

func (m *memCounters) CheckAndIncr(_ context.Context, key string, quota int64, ttl time.Duration) (bool, int64, error) {
	m.expire(key)
	v, ok := m.values[key]
	if !ok {
		m.values[key] = 1
		m.expiry[key] = m.now().Add(ttl)
		return true, 1, nil
	}
	if v >= quota {
		return false, 0, nil
	}
	m.values[key]++
	return true, m.values[key], nil
}

func (m *memCounters) touched() int { return m.gets + m.creates + m.incrs }

func tierWithQuota(q tier.Quota) tier.Config {
	return tier.Config{Name: "free", DailyQuota: q, MaxLookbackMonths: 3}
}

func TestCheck_FixedWindow(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		clock := time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC)
		now := func() time.Time { return clock }
		store := newMemCounters(now)
		l := New(store, atomic).WithClock(now)
		cfg := tierWithQuota(tier.Limit(3))
		ctx := context.Background()

		// Requests 1..3 succeed; remaining counts down to 0.
		for i, wantRemaining := range []int64{2, 1, 0} {
			d, err := l.Check(ctx, "user-1", cfg)
			if err != nil {
				t.Fatal(err)
			}
			if !d.Allowed {
				t.Fatalf("atomic=%v request %d: expected allowed", atomic, i+1)
			}
			if d.Remaining != tier.Limit(wantRemaining) {
				t.Errorf("atomic=%v request %d: remaining=%v, want %d", atomic, i+1, d.Remaining, wantRemaining)
			}
		}

		// Request q+1 is rejected and must not climb the counter.
		before := store.values[l.counterKey("user-1")]
		d, err := l.Check(ctx, "user-1", cfg)
		if err != nil {
			t.Fatal(err)
		}
		if d.Allowed {
			t.Fatalf("atomic=%v: expected rejection past quota", atomic)
		}
		if d.Remaining != tier.Limit(0) {
			t.Errorf("atomic=%v: rejected remaining=%v, want 0", atomic, d.Remaining)
		}
		if after := store.values[l.counterKey("user-1")]; after != before {
			t.Errorf("atomic=%v: exhausted counter climbed from %d to %d", atomic, before, after)
		}

		// First request of the next UTC day succeeds with a fresh window.
		clock = clock.Add(25 * time.Hour)
		d, err = l.Check(ctx, "user-1", cfg)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed || d.Remaining != tier.Limit(2) {
			t.Errorf("atomic=%v next day: allowed=%v remaining=%v, want allowed remaining 2", atomic, d.Allowed, d.Remaining)
		}
	}
}

func TestCheck_UnlimitedNeverTouchesStore(t *testing.T) {
	store := newMemCounters(time.Now)
	l := New(store, false)
	cfg := tierWithQuota(tier.NoLimit())

	for i := 0; i < 100; i++ {
		d, err := l.Check(context.Background(), "whale", cfg)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed || !d.Remaining.Unlimited {
			t.Fatalf("request %d: expected unlimited allow, got %+v", i, d)
		}
	}
	if store.touched() != 0 {
		t.Errorf("unlimited tier touched the store %d times", store.touched())
	}
}

func TestCheck_IdentitiesIsolated(t *testing.T) {
	store := newMemCounters(time.Now)
	l := New(store, false)
	cfg := tierWithQuota(tier.Limit(1))
	ctx := context.Background()

	if d, _ := l.Check(ctx, "a", cfg); !d.Allowed {
		t.Fatal("first request for a should pass")
	}
	if d, _ := l.Check(ctx, "a", cfg); d.Allowed {
		t.Fatal("second request for a should be rejected")
	}
	if d, _ := l.Check(ctx, "b", cfg); !d.Allowed {
		t.Fatal("b has its own window")
	}
}

func TestCounterKey_UsesUTCDay(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	now := func() time.Time { return time.Date(2024, time.March, 10, 23, 30, 0, 0, loc) }
	l := New(newMemCounters(now), false).WithClock(now)

	if got, want := l.counterKey("s"), "rate_limit:s:2024-03-11"; got != want {
		t.Errorf("counterKey=%q, want %q", got, want)
	}
}
