package analysis

import (
	"math"
	"sort"
	"time"

	"grid-backtest/internal/backtest"
	"grid-backtest/internal/model"
)

// Summary is a run-level report you can use for ranking and display.
type Summary struct {
	Market    string    `json:"market"`
	Timeframe string    `json:"timeframe"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`

	Candles int `json:"candles"`
	Events  int `json:"events"`

	MinPrice  float64 `json:"min_price"`
	MaxPrice  float64 `json:"max_price"`
	MeanPrice float64 `json:"mean_price"`
	P05Price  float64 `json:"p05_price"`
	P95Price  float64 `json:"p95_price"`

	InitialValue float64 `json:"initial_value"`
	FinalValue   float64 `json:"final_value"`

	ReturnPct      float64 `json:"return_pct"`
	BuyAndHoldPct  float64 `json:"buy_and_hold_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	Fills       int     `json:"fills"`
	RoundTrips  int     `json:"round_trips"`
	Wins        int     `json:"wins"`
	RealizedPNL float64 `json:"realized_pnl"`

	// LevelCrossings counts how often the simulated price path crossed a
	// grid level: an upper bound on round trips for this grid.
	LevelCrossings int `json:"level_crossings"`
}

func Summarize(res *backtest.Result) Summary {
	s := Summary{}
	if res == nil {
		return s
	}
	s.Market = res.Market.Symbol()
	s.Timeframe = res.Timeframe
	s.Candles = len(res.Candles)
	s.Events = res.Events
	s.InitialValue = res.InitialValue
	s.FinalValue = res.FinalValue
	s.ReturnPct = pctChange(res.InitialValue, res.FinalValue)
	s.MaxDrawdownPct = MaxDrawdownPct(res.InitialValue, backtest.CollapseMax(res.Equity))
	s.Fills = len(res.Trades)
	s.RealizedPNL = res.RealizedPNL
	for _, tr := range res.Trades {
		if tr.ClosesID == 0 {
			continue
		}
		s.RoundTrips++
		if tr.RealizedPNL > 0 {
			s.Wins++
		}
	}

	if len(res.Candles) == 0 {
		return s
	}
	first, last := res.Candles[0], res.Candles[len(res.Candles)-1]
	s.Start = first.Time
	s.End = last.Time
	s.BuyAndHoldPct = pctChange(first.Open, last.Close)

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	vals := make([]float64, 0, len(res.Candles))
	for _, c := range res.Candles {
		vals = append(vals, c.Close)
		sum += c.Close
		if c.Low < minv {
			minv = c.Low
		}
		if c.High > maxv {
			maxv = c.High
		}
	}
	sort.Float64s(vals)
	s.MinPrice = minv
	s.MaxPrice = maxv
	s.MeanPrice = sum / float64(len(vals))
	s.P05Price = percentileSorted(vals, 0.05)
	s.P95Price = percentileSorted(vals, 0.95)

	s.LevelCrossings = LevelCrossings(res.Candles, res.Levels)
	return s
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to/from - 1) * 100
}

// MaxDrawdownPct is the largest peak-to-trough fall in percent, starting from
// an initial peak of start.
func MaxDrawdownPct(start float64, points []backtest.EquityPoint) float64 {
	peak := start
	worst := 0.0
	for _, p := range points {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Value) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// LevelCrossings walks each candle along the same open/extreme/extreme/close
// path the simulator uses and counts level crossings. Touching a level and
// turning back counts once.
func LevelCrossings(candles []model.Candle, levels []float64) int {
	if len(levels) == 0 || len(candles) == 0 {
		return 0
	}
	asc := make([]float64, len(levels))
	copy(asc, levels)
	sort.Float64s(asc)

	n := 0
	prev := candles[0].Open
	for _, c := range candles {
		for _, p := range c.Path() {
			n += crossed(asc, prev, p)
			prev = p
		}
	}
	return n
}

// crossed counts sorted levels in (min(a,b), max(a,b)] in the direction of
// travel, i.e. levels reached when moving from a to b.
func crossed(asc []float64, a, b float64) int {
	switch {
	case b > a:
		// levels in (a, b]
		lo := sort.SearchFloat64s(asc, math.Nextafter(a, math.Inf(1)))
		hi := sort.SearchFloat64s(asc, math.Nextafter(b, math.Inf(1)))
		return hi - lo
	case b < a:
		// levels in [b, a)
		lo := sort.SearchFloat64s(asc, b)
		hi := sort.SearchFloat64s(asc, a)
		return hi - lo
	}
	return 0
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
