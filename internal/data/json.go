package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"grid-backtest/internal/model"
)

// LoadCandlesJSON reads candles from a file holding either a bare array of
// [ts_ms, o, h, l, c, v] rows or a CandleFile document.
func LoadCandlesJSON(path string) ([]model.Candle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCandlesJSON(raw)
}

func ParseCandlesJSON(raw []byte) ([]model.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err == nil {
		return decodeRows(rows)
	}
	var file CandleFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse candles: %w", err)
	}
	return file.Decode()
}

// StaticSource serves a fixed candle set through the paged CandleSource
// contract. Market and timeframe arguments are ignored: the set belongs to
// one market.
type StaticSource struct {
	candles   []model.Candle
	pageLimit int
}

// NewStaticSource sorts candles by time. pageLimit <= 0 returns everything
// in one page.
func NewStaticSource(candles []model.Candle, pageLimit int) *StaticSource {
	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	return &StaticSource{candles: sorted, pageLimit: pageLimit}
}

// OpenFileSource loads a candle file for offline backtests.
func OpenFileSource(path string, pageLimit int) (*StaticSource, error) {
	candles, err := LoadCandlesJSON(path)
	if err != nil {
		return nil, fmt.Errorf("load candles %s: %w", path, err)
	}
	return NewStaticSource(candles, pageLimit), nil
}

func (s *StaticSource) FetchCandles(ctx context.Context, _ model.Market, _ string, since time.Time) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := sort.Search(len(s.candles), func(i int) bool { return !s.candles[i].Time.Before(since) })
	j := len(s.candles)
	if s.pageLimit > 0 && i+s.pageLimit < j {
		j = i + s.pageLimit
	}
	out := make([]model.Candle, j-i)
	copy(out, s.candles[i:j])
	return out, nil
}

func (s *StaticSource) Len() int { return len(s.candles) }
