package model

import (
	"fmt"
	"time"
)

// Candle is one OHLCV bar as returned by an exchange.
//
// Exchanges deliver candles as
//
//	[timestamp_ms, open, high, low, close, volume]
//
// rows; see CandleFromRow.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IsGreen reports whether the candle closed above its open.
func (c Candle) IsGreen() bool {
	return c.Close > c.Open
}

// Path returns the order in which price is assumed to have visited the
// candle's extremes: open, low, high, close for green candles and open, high,
// low, close otherwise.
func (c Candle) Path() [4]float64 {
	if c.IsGreen() {
		return [4]float64{c.Open, c.Low, c.High, c.Close}
	}
	return [4]float64{c.Open, c.High, c.Low, c.Close}
}

// CandleFromRow converts a [ts_ms, o, h, l, c, v] row. Volume is optional.
func CandleFromRow(row []float64) (Candle, error) {
	if len(row) < 5 {
		return Candle{}, fmt.Errorf("candle row has %d fields, want at least 5", len(row))
	}
	c := Candle{
		Time:  time.UnixMilli(int64(row[0])).UTC(),
		Open:  row[1],
		High:  row[2],
		Low:   row[3],
		Close: row[4],
	}
	if len(row) > 5 {
		c.Volume = row[5]
	}
	return c, nil
}

// Row is the inverse of CandleFromRow.
func (c Candle) Row() []float64 {
	return []float64{float64(c.Time.UnixMilli()), c.Open, c.High, c.Low, c.Close, c.Volume}
}
