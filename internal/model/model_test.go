package model

import (
	"testing"
	"time"
)

func TestCandlePath(t *testing.T) {
	tests := []struct {
		name   string
		candle Candle
		want   [4]float64
	}{
		{"green", Candle{Open: 100, High: 120, Low: 90, Close: 110}, [4]float64{100, 90, 120, 110}},
		{"red", Candle{Open: 110, High: 120, Low: 90, Close: 100}, [4]float64{110, 120, 90, 100}},
		{"doji is red", Candle{Open: 100, High: 105, Low: 95, Close: 100}, [4]float64{100, 105, 95, 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.candle.Path(); got != tt.want {
				t.Errorf("Path: want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCandleFromRow(t *testing.T) {
	c, err := CandleFromRow([]float64{1640995200000, 1, 2, 0.5, 1.5, 42})
	if err != nil {
		t.Fatalf("CandleFromRow: %v", err)
	}
	if !c.Time.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("time: got %v", c.Time)
	}
	if c.Open != 1 || c.High != 2 || c.Low != 0.5 || c.Close != 1.5 || c.Volume != 42 {
		t.Errorf("unexpected candle %+v", c)
	}

	if _, err := CandleFromRow([]float64{1, 2, 3}); err == nil {
		t.Error("expected error for short row")
	}
}

func TestParseMarket(t *testing.T) {
	tests := []struct {
		in      string
		want    Market
		wantErr bool
	}{
		{"BTC/USD", Market{Base: "BTC", Quote: "USD"}, false},
		{"eth/usdt", Market{Base: "ETH", Quote: "USDT"}, false},
		{"ES", Market{Base: "ES"}, false},
		{"", Market{}, true},
		{"BTC/", Market{}, true},
		{"A/B/C", Market{}, true},
	}
	for _, tt := range tests {
		got, err := ParseMarket(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMarket(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMarket(%q): want %+v, got %+v", tt.in, tt.want, got)
		}
	}
	if s := (Market{Base: "ES"}).Symbol(); s != "ES" {
		t.Errorf("non-spot symbol: got %q", s)
	}
}

func TestOrderFilledState(t *testing.T) {
	o := &Order{Qty: 1}
	if o.IsFilled() {
		t.Fatal("new order must not be filled")
	}
	o.Fills = append(o.Fills, Fill{Qty: 0.3, Price: 10})
	o.Fills = append(o.Fills, Fill{Qty: 0.7, Price: 20})
	if !o.IsFilled() {
		t.Errorf("order with fills summing to qty should be filled, filled=%v", o.FilledQty())
	}
	if got := o.AvgFillPrice(); got < 16.999 || got > 17.001 {
		t.Errorf("AvgFillPrice: want 17, got %v", got)
	}
	if o.RemainingQty() != 0 {
		t.Errorf("RemainingQty: want 0, got %v", o.RemainingQty())
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Errorf("buy/sell should be opposites, got %s and %s", SideBuy.Opposite(), SideSell.Opposite())
	}
	if Side("HOLD").Opposite() != Side("HOLD") {
		t.Error("unknown side should map to itself")
	}
}

func TestParseTimeframe(t *testing.T) {
	tests := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
	}
	for in, want := range tests {
		got, err := ParseTimeframe(in)
		if err != nil || got != want {
			t.Errorf("ParseTimeframe(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "h", "0h", "3x", "-1d"} {
		if _, err := ParseTimeframe(bad); err == nil {
			t.Errorf("ParseTimeframe(%q): expected error", bad)
		}
	}
}
