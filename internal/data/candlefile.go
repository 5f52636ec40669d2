package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"grid-backtest/internal/model"
)

// CandleFile is the on-disk format written by fetch-candles.
type CandleFile struct {
	Market    string      `json:"market"`
	Timeframe string      `json:"timeframe"`
	UpdatedAt string      `json:"updated_at"` // ISO 8601 timestamp
	Rows      [][]float64 `json:"candles"`    // [ts_ms, o, h, l, c, v]
}

func NewCandleFile(m model.Market, timeframe, updatedAt string, candles []model.Candle) *CandleFile {
	f := &CandleFile{
		Market:    m.Symbol(),
		Timeframe: timeframe,
		UpdatedAt: updatedAt,
		Rows:      make([][]float64, 0, len(candles)),
	}
	for _, c := range candles {
		f.Rows = append(f.Rows, c.Row())
	}
	return f
}

func (f *CandleFile) Decode() ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(f.Rows))
	for i, row := range f.Rows {
		c, err := model.CandleFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadCandleFile loads a candle file document.
func LoadCandleFile(filePath string) (*CandleFile, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read candle file: %w", err)
	}

	var f CandleFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse candle file: %w", err)
	}

	return &f, nil
}

// SaveCandleFile writes f as indented JSON, creating parent directories.
func SaveCandleFile(f *CandleFile, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal candles: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write candle file: %w", err)
	}

	return nil
}

// DefaultCandlesPath returns where candles for m and timeframe are kept,
// e.g. ./data/BTC-USD_1h.json, under CANDLE_DATA_DIR when set.
func DefaultCandlesPath(m model.Market, timeframe string) string {
	name := strings.ReplaceAll(m.Symbol(), "/", "-") + "_" + timeframe + ".json"
	return filepath.Join(CandleDataDir(), name)
}

// CandleDataDir is CANDLE_DATA_DIR, or ./data.
func CandleDataDir() string {
	if dir := os.Getenv("CANDLE_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}
