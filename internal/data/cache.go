package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"grid-backtest/internal/model"
)

// Source is anything that can serve a page of candles.
type Source interface {
	FetchCandles(ctx context.Context, m model.Market, timeframe string, since time.Time) ([]model.Candle, error)
}

type cacheEntry struct {
	candles   []model.Candle
	expiresAt time.Time
}

// CachedSource keeps recently fetched pages in memory so that repeated API
// backtests over the same range do not hit the exchange again.
// It is safe for concurrent use.
type CachedSource struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	store map[string]*cacheEntry

	hits, misses int
}

func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		src:   src,
		ttl:   ttl,
		now:   time.Now,
		store: make(map[string]*cacheEntry),
	}
}

func (c *CachedSource) FetchCandles(ctx context.Context, m model.Market, timeframe string, since time.Time) ([]model.Candle, error) {
	key := CacheKey(m, timeframe, since)
	if candles, ok := c.get(key); ok {
		return candles, nil
	}
	candles, err := c.src.FetchCandles(ctx, m, timeframe, since)
	if err != nil {
		return nil, err
	}
	// empty pages are not kept: the range may fill in before the TTL runs out
	if len(candles) > 0 {
		c.set(key, candles)
	}
	return clone(candles), nil
}

func (c *CachedSource) get(key string) ([]model.Candle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.store[key]
	if !exists || c.now().After(entry.expiresAt) {
		c.misses++
		return nil, false
	}
	c.hits++
	return clone(entry.candles), true
}

func (c *CachedSource) set(key string, candles []model.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key] = &cacheEntry{
		candles:   clone(candles),
		expiresAt: c.now().Add(c.ttl),
	}
}

// Prune removes expired entries and returns how many were dropped.
func (c *CachedSource) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for key, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, key)
			n++
		}
	}
	return n
}

// Stats returns hit and miss counts since creation.
func (c *CachedSource) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// CacheKey creates a cache key from query parameters
func CacheKey(m model.Market, timeframe string, since time.Time) string {
	keyStr := fmt.Sprintf("%s:%s:%d", m.Symbol(), timeframe, since.UnixMilli())

	// Hash the key to keep it reasonably sized
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])
}

func clone(candles []model.Candle) []model.Candle {
	if candles == nil {
		return nil
	}
	out := make([]model.Candle, len(candles))
	copy(out, candles)
	return out
}
