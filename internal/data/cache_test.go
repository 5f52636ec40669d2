package data

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

type countingSource struct {
	candles []model.Candle
	err     error
	calls   int
}

func (s *countingSource) FetchCandles(ctx context.Context, m model.Market, tf string, since time.Time) ([]model.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return NewStaticSource(s.candles, 0).FetchCandles(ctx, m, tf, since)
}

func TestCachedSource(t *testing.T) {
	src := &countingSource{candles: hourly(3)}
	c := NewCachedSource(src, time.Hour)
	now := t0
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		page, err := c.FetchCandles(ctx, btcusd, "1h", t0)
		if err != nil || len(page) != 3 {
			t.Fatalf("fetch %d: got %d candles, err %v", i, len(page), err)
		}
		page[0].Close = -1 // callers get their own copy
	}
	if src.calls != 1 {
		t.Errorf("want 1 upstream call, got %d", src.calls)
	}
	if hits, misses := c.Stats(); hits != 2 || misses != 1 {
		t.Errorf("stats: want 2 hits 1 miss, got %d/%d", hits, misses)
	}
	page, _ := c.FetchCandles(ctx, btcusd, "1h", t0)
	if page[0].Close == -1 {
		t.Error("cached page was mutated through a returned slice")
	}

	// another key misses
	c.FetchCandles(ctx, btcusd, "4h", t0)
	if src.calls != 2 {
		t.Errorf("different timeframe should miss, calls=%d", src.calls)
	}

	now = now.Add(2 * time.Hour)
	if n := c.Prune(); n != 2 {
		t.Errorf("Prune: want 2 expired, got %d", n)
	}
	c.FetchCandles(ctx, btcusd, "1h", t0)
	if src.calls != 3 {
		t.Errorf("expired entry should refetch, calls=%d", src.calls)
	}
}

func TestCachedSourceDoesNotCacheEmptyPages(t *testing.T) {
	src := &countingSource{candles: hourly(3)}
	c := NewCachedSource(src, time.Hour)
	ctx := context.Background()

	edge := t0.Add(24 * time.Hour)
	for i := 0; i < 2; i++ {
		page, err := c.FetchCandles(ctx, btcusd, "1h", edge)
		if err != nil || len(page) != 0 {
			t.Fatalf("fetch %d: got %d candles, err %v", i, len(page), err)
		}
	}
	if src.calls != 2 {
		t.Errorf("empty pages should always refetch, calls=%d", src.calls)
	}

	// once the upstream has candles for the range they are served and kept
	src.candles = append(src.candles, model.Candle{Time: edge, Open: 1, High: 1, Low: 1, Close: 1})
	for i := 0; i < 2; i++ {
		page, _ := c.FetchCandles(ctx, btcusd, "1h", edge)
		if len(page) != 1 {
			t.Fatalf("fetch after fill-in %d: want 1 candle, got %d", i, len(page))
		}
	}
	if src.calls != 3 {
		t.Errorf("non-empty page should be cached, calls=%d", src.calls)
	}
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	src := &countingSource{err: boom}
	c := NewCachedSource(src, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := c.FetchCandles(context.Background(), btcusd, "1h", t0); !errors.Is(err, boom) {
			t.Fatalf("want upstream error, got %v", err)
		}
	}
	if src.calls != 2 {
		t.Errorf("errors must not be cached, calls=%d", src.calls)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(btcusd, "1h", t0)
	if a != CacheKey(btcusd, "1h", t0) {
		t.Error("key must be deterministic")
	}
	if a == CacheKey(btcusd, "1h", t0.Add(time.Hour)) || a == CacheKey(model.NewSpotMarket("ETH", "USD"), "1h", t0) {
		t.Error("keys must differ per since and market")
	}
	if len(a) != 64 {
		t.Errorf("want hex sha256, got %q", a)
	}
}

func TestStoredSource(t *testing.T) {
	store, err := NewPebbleStore(filepath.Join(t.TempDir(), "candles"))
	if err != nil {
		t.Fatalf("NewPebbleStore: %v", err)
	}
	defer store.Close()

	if _, found, err := store.LoadPage(btcusd, "1h", t0); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}

	src := &countingSource{candles: hourly(4)}
	stored := NewStoredSource(src, store, zerolog.Nop())
	ctx := context.Background()

	first, err := stored.FetchCandles(ctx, btcusd, "1h", t0)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	second, err := stored.FetchCandles(ctx, btcusd, "1h", t0)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("second fetch should come from disk, calls=%d", src.calls)
	}
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("want 4 candles each, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Time.Equal(second[i].Time) || first[i].Close != second[i].Close || first[i].Volume != second[i].Volume {
			t.Errorf("candle %d: %+v vs %+v", i, first[i], second[i])
		}
	}

	// empty pages are not persisted
	stored.FetchCandles(ctx, btcusd, "1h", t0.Add(24*time.Hour))
	stored.FetchCandles(ctx, btcusd, "1h", t0.Add(24*time.Hour))
	if src.calls != 3 {
		t.Errorf("empty pages should always refetch, calls=%d", src.calls)
	}
}
