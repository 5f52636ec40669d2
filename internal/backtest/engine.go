package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/broker"
	"grid-backtest/internal/model"
	"grid-backtest/internal/strategy"
)

// RunConfig is everything one backtest needs. Each Run builds its own wallet,
// broker and simulator, so concurrent runs share nothing but Source.
type RunConfig struct {
	Market    model.Market
	Timeframe string
	Start     time.Time
	End       time.Time

	Wallet map[string]float64
	Grid   strategy.GridParams

	Source CandleSource
}

type Engine struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// Run executes a grid backtest over the configured candle range.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("candle source is nil")
	}
	if cfg.Market.Base == "" {
		return nil, fmt.Errorf("market is empty")
	}
	if !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("end %s is before start %s", cfg.End.Format(time.RFC3339), cfg.Start.Format(time.RFC3339))
	}

	m := cfg.Market
	wallet := model.NewWallet(cfg.Wallet)
	br := broker.NewSimulated(wallet, e.log)
	sim := NewSimulator(SimulatorConfig{
		Market:    m,
		Timeframe: cfg.Timeframe,
		Start:     cfg.Start,
		End:       cfg.End,
	}, cfg.Source, br, e.log)

	if err := sim.Load(ctx); err != nil {
		return nil, err
	}

	grid := strategy.NewGridStrategy(strategy.Context{
		Market: m,
		Wallet: wallet,
		Broker: br,
		Prices: sim,
		Log:    e.log,
	})
	equity := NewEquityTracker(m, wallet, sim)

	br.AddListener(grid)
	br.AddListener(equity)
	sim.AddListener(m, grid)
	sim.AddListener(m, br)

	initialWallet := wallet.Snapshot()
	initialPrice := sim.CurrentPrice(m)
	initialValue := wallet.Value(m, initialPrice)

	if err := grid.Initialise(cfg.Grid, sim.CurrentTime()); err != nil {
		return nil, fmt.Errorf("initialise grid: %w", err)
	}
	if err := sim.Run(ctx); err != nil {
		return nil, err
	}

	finalPrice := sim.CurrentPrice(m)
	filled := br.FilledOrders()
	trades := BuildTrades(filled)

	res := &Result{
		Market:        m,
		Timeframe:     cfg.Timeframe,
		Levels:        grid.Grid().Levels(),
		Candles:       sim.Candles(),
		FilledOrders:  filled,
		Trades:        trades,
		Equity:        equity.Points(),
		InitialWallet: initialWallet,
		FinalWallet:   wallet.Snapshot(),
		InitialPrice:  initialPrice,
		FinalPrice:    finalPrice,
		InitialValue:  initialValue,
		FinalValue:    wallet.Value(m, finalPrice),
		Events:        sim.Events(),
	}
	if n := len(trades); n > 0 {
		res.RealizedPNL = trades[n-1].CumPNL
	}

	e.log.Info().
		Str("market", m.Symbol()).
		Int("fills", len(filled)).
		Int("open", len(br.OpenOrders())).
		Msgf("Wallet value: %g %s", res.FinalValue, m.Quote)

	return res, nil
}
