package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"grid-backtest/internal/model"
)

const (
	TradesFile  = "trades.csv"
	EquityFile  = "equity.csv"
	CandlesFile = "candles.csv"
)

// WriteResultCSV writes trades, equity and candles for res into dir.
func WriteResultCSV(dir string, res *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := WriteTradesCSV(filepath.Join(dir, TradesFile), res.Trades); err != nil {
		return fmt.Errorf("write trades: %w", err)
	}
	if err := WriteEquityCSV(filepath.Join(dir, EquityFile), res.Equity); err != nil {
		return fmt.Errorf("write equity: %w", err)
	}
	if err := WriteCandlesCSV(filepath.Join(dir, CandlesFile), res.Candles); err != nil {
		return fmt.Errorf("write candles: %w", err)
	}
	return nil
}

func WriteTradesCSV(path string, trades []TradeRow) error {
	header := []string{
		"order_id",
		"time",
		"side",
		"type",
		"qty",
		"price",
		"fee",
		"closes_id",
		"realized_pnl",
		"cum_pnl",
	}
	return writeCSV(path, header, len(trades), func(i int) []string {
		r := trades[i]
		closes := ""
		if r.ClosesID != 0 {
			closes = strconv.FormatInt(r.ClosesID, 10)
		}
		return []string{
			strconv.FormatInt(r.OrderID, 10),
			fmtTime(r.Time),
			string(r.Side),
			string(r.Type),
			fmtFloat(r.Qty),
			fmtFloat(r.Price),
			fmtFloat(r.Fee),
			closes,
			fmtFloat(r.RealizedPNL),
			fmtFloat(r.CumPNL),
		}
	})
}

func WriteEquityCSV(path string, points []EquityPoint) error {
	return writeCSV(path, []string{"time", "value"}, len(points), func(i int) []string {
		return []string{fmtTime(points[i].Time), fmtFloat(points[i].Value)}
	})
}

func WriteCandlesCSV(path string, candles []model.Candle) error {
	header := []string{"time", "open", "high", "low", "close", "volume"}
	return writeCSV(path, header, len(candles), func(i int) []string {
		c := candles[i]
		return []string{
			fmtTime(c.Time),
			fmtFloat(c.Open),
			fmtFloat(c.High),
			fmtFloat(c.Low),
			fmtFloat(c.Close),
			fmtFloat(c.Volume),
		}
	})
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
