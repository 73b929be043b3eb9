// Package ratelimit gates outbound exchange calls with per-endpoint
// token buckets so the bot stays inside the venue's published limits.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Category identifies a class of exchange endpoints that share one
// request budget. The values mirror the venue's rate-limit groups.
type Category string

const (
	CategoryOrderCreate    Category = "order_create"
	CategoryOrderAmend     Category = "order_amend"
	CategoryOrderCancel    Category = "order_cancel"
	CategoryOrderCancelAll Category = "order_cancel_all"
	CategoryOrderQuery     Category = "order_query"
	CategoryPosition       Category = "position"
	CategoryAccount        Category = "account"
	CategoryMarketData     Category = "market_data"
)

// Config sets a bucket's capacity over a refill window.
type Config struct {
	MaxRequests int `yaml:"max_requests"`
	WindowMs    int `yaml:"window_ms"`
}

// defaultLimits holds the per-category budgets over a one second
// window. Unrecognized categories fall back to fallbackConfig.
var defaultLimits = map[Category]Config{
	CategoryOrderCreate:    {MaxRequests: 10, WindowMs: 1000},
	CategoryOrderAmend:     {MaxRequests: 10, WindowMs: 1000},
	CategoryOrderCancel:    {MaxRequests: 10, WindowMs: 1000},
	CategoryOrderCancelAll: {MaxRequests: 1, WindowMs: 1000},
	CategoryOrderQuery:     {MaxRequests: 10, WindowMs: 1000},
	CategoryPosition:       {MaxRequests: 10, WindowMs: 1000},
	CategoryAccount:        {MaxRequests: 10, WindowMs: 1000},
	CategoryMarketData:     {MaxRequests: 20, WindowMs: 1000},
}

var fallbackConfig = Config{MaxRequests: 10, WindowMs: 1000}

// DefaultLimits returns a copy of the built-in category table.
func DefaultLimits() map[Category]Config {
	out := make(map[Category]Config, len(defaultLimits))
	for c, cfg := range defaultLimits {
		out[c] = cfg
	}
	return out
}

// TokenBucket accrues capacity continuously at refillRate and is spent
// one token per acquire. All fields are guarded by mu; the lock is held
// across the wait inside Acquire, which serializes concurrent acquirers
// on the same bucket.
type TokenBucket struct {
	mu         sync.Mutex
	maxTokens  float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill int64   // unix milliseconds
}

func newTokenBucket(cfg Config) *TokenBucket {
	return &TokenBucket{
		maxTokens:  float64(cfg.MaxRequests),
		tokens:     float64(cfg.MaxRequests),
		refillRate: float64(cfg.MaxRequests) / (float64(cfg.WindowMs) / 1000.0),
		lastRefill: time.Now().UnixMilli(),
	}
}

// Acquire blocks until a token is available, sleeping exactly the time
// the refill rate needs to cover the shortfall, then spends one token.
// It returns early only when ctx is cancelled.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	for b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		b.refill()
	}
	b.tokens--
	return nil
}

func (b *TokenBucket) refill() {
	now := time.Now().UnixMilli()
	elapsed := float64(now-b.lastRefill) / 1000.0
	b.tokens = math.Min(b.maxTokens, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Available refills for elapsed time and reports the token level.
// Diagnostic; the value is stale the moment the lock is released.
func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// Limiter hands out per-(category, symbol) token buckets, created
// lazily on first use. Buckets live for the limiter's lifetime.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
	limits  map[Category]Config
}

// New builds a limiter from the default table merged with overrides.
// A category with a non-positive budget would make Acquire wait
// forever, so it is rejected here rather than hanging at runtime.
func New(overrides map[Category]Config) (*Limiter, error) {
	limits := make(map[Category]Config, len(defaultLimits))
	for c, cfg := range defaultLimits {
		limits[c] = cfg
	}
	for c, cfg := range overrides {
		if cfg.WindowMs <= 0 {
			cfg.WindowMs = 1000
		}
		limits[c] = cfg
	}
	for c, cfg := range limits {
		if cfg.MaxRequests <= 0 {
			return nil, fmt.Errorf("rate limit for %s: max_requests must be positive, got %d", c, cfg.MaxRequests)
		}
	}
	return &Limiter{
		buckets: make(map[string]*TokenBucket),
		limits:  limits,
	}, nil
}

func bucketKey(c Category, symbol string) string {
	if symbol == "" {
		return string(c)
	}
	return string(c) + ":" + symbol
}

func (l *Limiter) bucket(c Category, symbol string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := bucketKey(c, symbol)
	b, ok := l.buckets[k]
	if !ok {
		cfg, known := l.limits[c]
		if !known {
			cfg = fallbackConfig
		}
		b = newTokenBucket(cfg)
		l.buckets[k] = b
	}
	return b
}

// Acquire takes one token from the bucket for (category, symbol),
// waiting as long as the refill rate requires. An empty symbol selects
// the category-wide bucket.
func (l *Limiter) Acquire(ctx context.Context, c Category, symbol string) error {
	return l.bucket(c, symbol).Acquire(ctx)
}

// UpdateFromHeaders resynchronizes a bucket with the remaining count
// the exchange reported in its response headers, overwriting the local
// token level and refill epoch. Only buckets that already exist are
// touched; this never creates one.
func (l *Limiter) UpdateFromHeaders(c Category, remaining int, resetTimestampMs int64, symbol string) {
	l.mu.Lock()
	b, ok := l.buckets[bucketKey(c, symbol)]
	l.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = float64(remaining)
	b.lastRefill = time.Now().UnixMilli()
}

// AvailableTokens reports (and lazily creates) the bucket for
// (category, symbol) and returns its current level after a refill.
func (l *Limiter) AvailableTokens(c Category, symbol string) float64 {
	return l.bucket(c, symbol).Available()
}

// Usage snapshots the token level of every bucket created so far,
// keyed the same way Acquire keys them.
func (l *Limiter) Usage() map[string]float64 {
	l.mu.Lock()
	keys := make([]string, 0, len(l.buckets))
	buckets := make([]*TokenBucket, 0, len(l.buckets))
	for k, b := range l.buckets {
		keys = append(keys, k)
		buckets = append(buckets, b)
	}
	l.mu.Unlock()

	usage := make(map[string]float64, len(keys))
	for i, b := range buckets {
		usage[keys[i]] = b.Available()
	}
	return usage
}
