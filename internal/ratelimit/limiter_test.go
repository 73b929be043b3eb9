package ratelimit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustLimiter(t *testing.T, overrides map[Category]Config) *Limiter {
	t.Helper()
	l, err := New(overrides)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestCapacityThenBlock(t *testing.T) {
	l := mustLimiter(t, map[Category]Config{
		CategoryOrderCreate: {MaxRequests: 5, WindowMs: 200},
	})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx, CategoryOrderCreate, ""); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("first 5 acquires took %v, expected no measurable wait", elapsed)
	}

	// Bucket is empty; the next acquire has to wait for the refill.
	start = time.Now()
	if err := l.Acquire(ctx, CategoryOrderCreate, ""); err != nil {
		t.Fatalf("acquire after exhaustion: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("6th acquire returned after %v, expected a wait", elapsed)
	}
}

func TestRefillAfterFullWindow(t *testing.T) {
	l := mustLimiter(t, map[Category]Config{
		CategoryOrderCancelAll: {MaxRequests: 1, WindowMs: 100},
	})
	ctx := context.Background()

	if err := l.Acquire(ctx, CategoryOrderCancelAll, ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	if avail := l.AvailableTokens(CategoryOrderCancelAll, ""); avail < 1 {
		t.Fatalf("available = %v after a full window, expected >= 1", avail)
	}
}

func TestTokensNeverExceedCapacity(t *testing.T) {
	l := mustLimiter(t, map[Category]Config{
		CategoryAccount: {MaxRequests: 3, WindowMs: 50},
	})
	time.Sleep(200 * time.Millisecond)
	if avail := l.AvailableTokens(CategoryAccount, ""); avail > 3 {
		t.Fatalf("available = %v, capacity is 3", avail)
	}
}

func TestSymbolBucketsAreIndependent(t *testing.T) {
	l := mustLimiter(t, map[Category]Config{
		CategoryOrderCreate: {MaxRequests: 2, WindowMs: 5000},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx, CategoryOrderCreate, "BTCUSDT"); err != nil {
			t.Fatalf("acquire BTCUSDT %d: %v", i, err)
		}
	}

	// BTCUSDT is exhausted; ETHUSDT must not be delayed by it.
	start := time.Now()
	if err := l.Acquire(ctx, CategoryOrderCreate, "ETHUSDT"); err != nil {
		t.Fatalf("acquire ETHUSDT: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("ETHUSDT acquire took %v, expected no wait", elapsed)
	}
}

func TestSymbolAndCategoryWideBucketsDiffer(t *testing.T) {
	l := mustLimiter(t, nil)
	ctx := context.Background()

	if err := l.Acquire(ctx, CategoryPosition, "BTCUSDT"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	sym := l.AvailableTokens(CategoryPosition, "BTCUSDT")
	wide := l.AvailableTokens(CategoryPosition, "")
	if wide <= sym {
		t.Fatalf("category-wide bucket (%v) shared tokens with symbol bucket (%v)", wide, sym)
	}
}

func TestUnknownCategoryUsesFallback(t *testing.T) {
	l := mustLimiter(t, nil)
	if avail := l.AvailableTokens(Category("exotic_endpoint"), ""); avail != 10 {
		t.Fatalf("fallback bucket starts at %v, expected 10", avail)
	}
}

func TestUpdateFromHeadersOverwritesExistingBucket(t *testing.T) {
	l := mustLimiter(t, nil)
	ctx := context.Background()

	// market_data has capacity 20, so a synced value of 15 survives the
	// refill clamp that AvailableTokens applies.
	if err := l.Acquire(ctx, CategoryMarketData, ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	l.UpdateFromHeaders(CategoryMarketData, 15, time.Now().UnixMilli()+1000, "")

	avail := l.AvailableTokens(CategoryMarketData, "")
	if avail < 15 || avail > 15.1 {
		t.Fatalf("available = %v after header sync, expected 15 (plus sub-ms drift)", avail)
	}
}

func TestUpdateFromHeadersNeverCreatesBuckets(t *testing.T) {
	l := mustLimiter(t, nil)
	l.UpdateFromHeaders(CategoryMarketData, 3, 0, "BTCUSDT")
	if usage := l.Usage(); len(usage) != 0 {
		t.Fatalf("header sync created buckets: %v", usage)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	l := mustLimiter(t, map[Category]Config{
		CategoryOrderCreate: {MaxRequests: 1, WindowMs: 60000},
	})
	if err := l.Acquire(context.Background(), CategoryOrderCreate, ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := l.Acquire(ctx, CategoryOrderCreate, "")
	if err == nil {
		t.Fatal("acquire succeeded on an exhausted bucket with a 1 minute window")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled acquire returned after %v", elapsed)
	}
}

func TestZeroBudgetRejectedAtConstruction(t *testing.T) {
	for _, bad := range []int{0, -1} {
		_, err := New(map[Category]Config{
			CategoryOrderCreate: {MaxRequests: bad, WindowMs: 1000},
		})
		if err == nil {
			t.Fatalf("New accepted max_requests=%d", bad)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	content := []byte("rate_limits:\n  order_create:\n    max_requests: 5\n    window_ms: 2000\n  market_data:\n    max_requests: 40\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if got := overrides[CategoryOrderCreate]; got.MaxRequests != 5 || got.WindowMs != 2000 {
		t.Fatalf("order_create override = %+v", got)
	}
	if got := overrides[CategoryMarketData]; got.MaxRequests != 40 {
		t.Fatalf("market_data override = %+v", got)
	}

	// Empty path means no overrides, not an error.
	if ov, err := LoadOverrides(""); err != nil || ov != nil {
		t.Fatalf("LoadOverrides(\"\") = %v, %v", ov, err)
	}
}
