package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucketLimiter_Allow_Disabled(t *testing.T) {
	mr, rdb := newRedis(t)
	lim := NewTokenBucketLimiter(rdb)

	dec, err := lim.Allow(context.Background(), "ai", "user-1", Bucket{})
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed when bucket disabled")
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("disabled bucket touched redis: %v", mr.Keys())
	}
}

func TestTokenBucketLimiter_Allow_BlocksAfterBurst(t *testing.T) {
	_, rdb := newRedis(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lim := NewTokenBucketLimiter(rdb, WithClock(func() time.Time { return now }))
	bucket := Bucket{RequestsPerMinute: 60, BurstSize: 2}

	for i := 0; i < 2; i++ {
		dec, err := lim.Allow(context.Background(), "ai", "user-1", bucket)
		if err != nil || !dec.Allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i, dec.Allowed, err)
		}
	}

	dec, err := lim.Allow(context.Background(), "ai", "user-1", bucket)
	if err != nil {
		t.Fatalf("allow 3: %v", err)
	}
	if dec.Allowed || dec.RetryAfter != time.Second {
		t.Fatalf("third request = %+v, want blocked with 1s retry", dec)
	}

	other, err := lim.Allow(context.Background(), "ai", "user-2", bucket)
	if err != nil || !other.Allowed {
		t.Fatalf("other subject should have its own bucket: %+v %v", other, err)
	}

	now = now.Add(time.Second)
	dec, err = lim.Allow(context.Background(), "ai", "user-1", bucket)
	if err != nil || !dec.Allowed {
		t.Fatalf("after refill = %+v %v", dec, err)
	}
}

func TestTokenBucketLimiter_KeyLayout(t *testing.T) {
	mr, rdb := newRedis(t)
	lim := NewTokenBucketLimiter(rdb, WithKeyPrefix("staging:rl:"))

	if _, err := lim.Allow(context.Background(), "", "secret-subject", Bucket{RequestsPerMinute: 10, BurstSize: 1}); err != nil {
		t.Fatal(err)
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("keys = %v", keys)
	}
	if !strings.HasPrefix(keys[0], "staging:rl:default:") || strings.Contains(keys[0], "secret-subject") {
		t.Errorf("key = %q", keys[0])
	}
	if ttl := mr.TTL(keys[0]); ttl < 30*time.Second {
		t.Errorf("ttl = %v, want at least the 30s floor", ttl)
	}
	if got := NewTokenBucketLimiter(nil).Key("ai", ""); !strings.HasPrefix(got, "pixelq:rl:ai:") {
		t.Errorf("default key = %q", got)
	}
}

func TestTokenBucketLimiter_RedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	lim := NewTokenBucketLimiter(rdb)
	if _, err := lim.Allow(context.Background(), "ai", "user-1", Bucket{RequestsPerMinute: 1, BurstSize: 1}); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestComputeTTLMS(t *testing.T) {
	tests := []struct {
		rate, capacity float64
		want           time.Duration
	}{
		{0, 0, 2 * time.Minute},
		{100, 1, 30 * time.Second},
		{1, 60, 125 * time.Second},
		{0.001, 1000, time.Hour},
	}
	for _, tt := range tests {
		if got := time.Duration(computeTTLMS(tt.rate, tt.capacity)) * time.Millisecond; got != tt.want {
			t.Errorf("computeTTLMS(%v, %v) = %v, want %v", tt.rate, tt.capacity, got, tt.want)
		}
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var lim *TokenBucketLimiter
	dec, err := lim.Allow(context.Background(), "ai", "x", Bucket{RequestsPerMinute: 1, BurstSize: 1})
	if err != nil || !dec.Allowed {
		t.Fatalf("nil limiter = %+v %v", dec, err)
	}
}
