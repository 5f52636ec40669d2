package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"time"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/data"
	"grid-backtest/internal/logger"
	"grid-backtest/internal/model"
	"grid-backtest/internal/strategy"
)

// Demo:
// - Load candles from a file, or generate a swinging price path
// - Run a grid over them with the simulated broker
// - Print the first fills to show how the pieces fit together
func main() {
	dataPath := flag.String("data", "", "Optional candle file (bare rows or fetch-candles output)")
	n := flag.Int("n", 48, "Number of hourly candles to generate when --data is not set")
	upper := flag.Float64("upper", 2000, "Grid upper price")
	lower := flag.Float64("lower", 1000, "Grid lower price")
	step := flag.Float64("step", 100, "Grid price step")
	usd := flag.Float64("usd", 10000, "Starting quote balance")
	outDir := flag.String("out", "", "Optional directory to write trades/equity/candles CSV")
	flag.Parse()

	log := logger.Init()
	defer logger.Close()

	var candles []model.Candle
	if *dataPath != "" {
		loaded, err := data.LoadCandlesJSON(*dataPath)
		if err != nil {
			panic(err)
		}
		candles = loaded
	} else {
		candles = swing(*n, (*upper+*lower)/2, (*upper-*lower)/3)
	}
	if len(candles) == 0 {
		panic("no candles")
	}

	m := model.NewSpotMarket("BTC", "USD")
	src := data.NewStaticSource(candles, 0)
	first, last := candles[0], candles[len(candles)-1]

	engine := backtest.New(log)
	result, err := engine.Run(context.Background(), backtest.RunConfig{
		Market:    m,
		Timeframe: "1h",
		Start:     first.Time,
		End:       last.Time,
		Wallet:    map[string]float64{m.Quote: *usd},
		Grid:      strategy.GridParams{UpperPrice: *upper, LowerPrice: *lower, PriceStep: *step},
		Source:    src,
	})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Loaded %d candles for %s, price %.2f -> %.2f\n", len(result.Candles), m, result.InitialPrice, result.FinalPrice)
	fmt.Printf("Grid=%d levels %g..%g step %g\n", len(result.Levels), *lower, *upper, *step)
	fmt.Printf("Starting wallet=%v\n\n", result.InitialWallet)

	for i := 0; i < min(12, len(result.Trades)); i++ {
		r := result.Trades[i]
		fmt.Printf(
			"%s %-4s %-6s qty=%10.6f price=%9.2f closes=%-3d pnl=%8.2f cum=%8.2f\n",
			r.Time.Format("2006-01-02 15:04"),
			r.Side,
			r.Type,
			r.Qty,
			r.Price,
			r.ClosesID,
			r.RealizedPNL,
			r.CumPNL,
		)
	}

	if *outDir != "" {
		if err := backtest.WriteResultCSV(*outDir, result); err != nil {
			panic(err)
		}
		fmt.Printf("\nWrote CSV to %s\n", *outDir)
	}

	s := analysis.Summarize(result)
	fmt.Printf("\nDone. Final wallet=%v  value=%.2f  return=%.2f%%  realized PnL=%.2f\n",
		result.FinalWallet, s.FinalValue, s.ReturnPct, s.RealizedPNL)
}

// swing generates hourly candles oscillating around mid with the given
// amplitude, one full cycle per day.
func swing(n int, mid, amplitude float64) []model.Candle {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	price := func(i int) float64 {
		return mid + amplitude*math.Sin(2*math.Pi*float64(i)/24)
	}
	out := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		o, c := price(i), price(i+1)
		out = append(out, model.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   o,
			High:   math.Max(o, c) + amplitude*0.02,
			Low:    math.Min(o, c) - amplitude*0.02,
			Close:  c,
			Volume: 1,
		})
	}
	return out
}
