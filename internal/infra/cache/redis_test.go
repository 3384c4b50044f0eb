package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"options_go/internal/domain"
)

func TestKey(t *testing.T) {
	if got := Key("abc"); got != "pricing:abc" {
		t.Errorf("Key = %q", got)
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := NewRedisCache(ctx, "127.0.0.1:1", "", 0, time.Minute); err == nil {
		t.Error("Expected connection error for a closed port")
	}
}

// Runs against a live server only when OPTIONS_TEST_REDIS_ADDR is set.
func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("OPTIONS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OPTIONS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, addr, "", 0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	key := "test-" + time.Now().Format("150405.000000000")
	if rec, err := c.GetPricing(ctx, key); err != nil || rec != nil {
		t.Fatalf("Expected miss, got (%v, %v)", rec, err)
	}

	in := &domain.PricingRecord{CacheKey: key, Model: "CLOSED_FORM", Price: decimal.RequireFromString("10.4506")}
	if err := c.SavePricing(ctx, in); err != nil {
		t.Fatal(err)
	}
	out, err := c.GetPricing(ctx, key)
	if err != nil || out == nil {
		t.Fatalf("Expected hit, got (%v, %v)", out, err)
	}
	if !out.Price.Equal(in.Price) || out.Model != "CLOSED_FORM" {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
