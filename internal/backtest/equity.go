package backtest

import (
	"time"

	"grid-backtest/internal/model"
)

type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// EquityTracker records the wallet value in quote currency after every fill.
type EquityTracker struct {
	market model.Market
	wallet *model.Wallet
	prices model.PriceSource

	points []EquityPoint
}

func NewEquityTracker(m model.Market, w *model.Wallet, prices model.PriceSource) *EquityTracker {
	return &EquityTracker{market: m, wallet: w, prices: prices}
}

func (e *EquityTracker) OnOrderFilled(_ *model.Order, f model.Fill) {
	e.points = append(e.points, EquityPoint{
		Time:  f.Timestamp,
		Value: e.wallet.Value(e.market, e.prices.CurrentPrice(e.market)),
	})
}

// Points returns every recorded point, including several per timestamp when
// one price event filled more than one order.
func (e *EquityTracker) Points() []EquityPoint {
	out := make([]EquityPoint, len(e.points))
	copy(out, e.points)
	return out
}

// CollapseMax keeps one point per timestamp, the one with the highest value,
// in order of first appearance.
func CollapseMax(points []EquityPoint) []EquityPoint {
	out := make([]EquityPoint, 0, len(points))
	index := make(map[int64]int, len(points))
	for _, p := range points {
		key := p.Time.UnixNano()
		if i, ok := index[key]; ok {
			if p.Value > out[i].Value {
				out[i].Value = p.Value
			}
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	return out
}
