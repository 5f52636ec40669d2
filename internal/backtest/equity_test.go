package backtest

import (
	"reflect"
	"testing"

	"grid-backtest/internal/model"
)

type staticPrice float64

func (p staticPrice) CurrentPrice(model.Market) float64 { return float64(p) }

func TestEquityTrackerRecordsEveryFill(t *testing.T) {
	w := model.NewWallet(map[string]float64{"USD": 100, "BTC": 2})
	eq := NewEquityTracker(btcusd, w, staticPrice(50))

	eq.OnOrderFilled(nil, model.Fill{Timestamp: hour(0)})
	w.SetBalance("BTC", 3)
	eq.OnOrderFilled(nil, model.Fill{Timestamp: hour(0)})

	want := []EquityPoint{{hour(0), 200}, {hour(0), 250}}
	if got := eq.Points(); !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestCollapseMax(t *testing.T) {
	in := []EquityPoint{
		{hour(0), 10},
		{hour(1), 12},
		{hour(1), 15},
		{hour(1), 11},
		{hour(2), 9},
		{hour(0), 14},
	}
	want := []EquityPoint{
		{hour(0), 14},
		{hour(1), 15},
		{hour(2), 9},
	}
	if got := CollapseMax(in); !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
	if got := CollapseMax(nil); len(got) != 0 {
		t.Errorf("empty input should collapse to nothing, got %v", got)
	}
}
