package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

var ErrAlreadyInitialised = errors.New("grid strategy already initialised")

// GridParams configures the grid. All prices are in quote currency.
type GridParams struct {
	UpperPrice float64
	LowerPrice float64
	PriceStep  float64
}

// GridStrategy keeps exactly one buy below and one sell above the last fill.
// Every limit fill cancels the market's open orders and re-centers the pair
// around the filled level. Position size is recomputed from the wallet on each
// fill, so gains and losses compound.
type GridStrategy struct {
	market model.Market
	wallet *model.Wallet
	broker Broker
	prices model.PriceSource
	log    zerolog.Logger

	grid   *Grid
	active bool
}

func NewGridStrategy(ctx Context) *GridStrategy {
	return &GridStrategy{
		market: ctx.Market,
		wallet: ctx.Wallet,
		broker: ctx.Broker,
		prices: ctx.Prices,
		log:    ctx.Log.With().Str("component", "grid").Str("market", ctx.Market.Symbol()).Logger(),
	}
}

func (s *GridStrategy) Name() string { return "grid" }

// Grid is nil until Initialise succeeds.
func (s *GridStrategy) Grid() *Grid { return s.grid }

func (s *GridStrategy) Active() bool { return s.active }

// Initialise builds the grid, tops up base holdings when they cannot cover the
// levels above the current price, and places the first buy/sell pair on the
// nearest levels below and above the price. When the price sits exactly on a
// level the pair straddles it: buy one level below, sell one level above.
func (s *GridStrategy) Initialise(p GridParams, at time.Time) error {
	if s.active {
		return ErrAlreadyInitialised
	}
	grid, err := NewGrid(p.UpperPrice, p.LowerPrice, p.PriceStep)
	if err != nil {
		return err
	}
	price := s.prices.CurrentPrice(s.market)
	if price <= 0 {
		return fmt.Errorf("no current price for %s", s.market)
	}
	s.grid = grid
	s.log.Info().
		Int("levels", grid.Len()).
		Float64("upper", grid.Upper()).
		Float64("lower", grid.Lower()).
		Float64("step", grid.Step()).
		Msg("generated price levels")

	size := s.positionSize(price)

	required := 0.0
	for i, lvl := range grid.levels {
		if lvl > price {
			required += s.sellQty(i, size)
		}
	}
	if shortfall := required - s.wallet.Balance(s.market.Base); shortfall > model.QtyTolerance {
		s.log.Info().Float64("qty", shortfall).Msg("topping up base holdings")
		s.broker.CreateOrder(model.OrderRequest{
			Market:    s.market,
			Qty:       shortfall,
			Side:      model.SideBuy,
			Type:      model.TypeMarket,
			Timestamp: at,
		})
	}

	buyIdx, sellIdx, ok := s.initialIndexes(price)
	if !ok {
		s.log.Warn().Float64("price", price).Msg("current price outside grid")
	}
	s.place(buyIdx, sellIdx, size, nil, at)

	s.active = true
	return nil
}

// initialIndexes picks the nearest real levels around price. On an exact grid
// line the buy and sell would coincide, so they move one level apart. A side
// that has no level gets index -1; ok is false when price is outside the grid.
func (s *GridStrategy) initialIndexes(price float64) (buy, sell int, ok bool) {
	if s.grid.IsLevel(price) {
		i := s.grid.firstIndexAtOrBelow(price)
		return i + 1, i - 1, true
	}
	ok = price >= s.grid.Lower() && price <= s.grid.Upper()
	return s.grid.firstIndexAtOrBelow(price), s.grid.lastIndexAtOrAbove(price), ok
}

func (s *GridStrategy) OnPriceChanged(model.Market, float64, time.Time) {}

// OnOrderFilled re-centers the grid on limit fills in this strategy's market.
func (s *GridStrategy) OnOrderFilled(o *model.Order, f model.Fill) {
	if !s.active || o.Market != s.market || o.Type != model.TypeLimit {
		return
	}
	canceled := s.broker.CancelAll(s.market)

	idx := s.grid.IndexOf(f.Price)
	size := s.positionSize(f.Price)
	s.log.Debug().
		Int64("order", o.ID).
		Str("side", string(o.Side)).
		Float64("price", f.Price).
		Int("index", idx).
		Int("canceled", canceled).
		Msg("re-centering grid")

	var buyCloses, sellCloses *model.Order
	switch o.Side.Opposite() {
	case model.SideSell:
		sellCloses = o
	case model.SideBuy:
		buyCloses = o
	}
	s.placeBuy(idx+1, size, buyCloses, f.Timestamp)
	s.placeSell(idx-1, size, sellCloses, f.Timestamp)
}

func (s *GridStrategy) place(buyIdx, sellIdx int, size float64, closes *model.Order, at time.Time) {
	s.placeBuy(buyIdx, size, closes, at)
	s.placeSell(sellIdx, size, closes, at)
}

func (s *GridStrategy) placeBuy(idx int, size float64, closes *model.Order, at time.Time) {
	lvl, ok := s.grid.LevelAt(idx)
	if !ok || lvl <= 0 {
		return
	}
	s.broker.CreateOrder(model.OrderRequest{
		Market:     s.market,
		Qty:        size / lvl,
		Side:       model.SideBuy,
		Type:       model.TypeLimit,
		LimitPrice: lvl,
		Timestamp:  at,
		Closes:     closes,
	})
}

func (s *GridStrategy) placeSell(idx int, size float64, closes *model.Order, at time.Time) {
	lvl, ok := s.grid.LevelAt(idx)
	if !ok || lvl <= 0 {
		return
	}
	s.broker.CreateOrder(model.OrderRequest{
		Market:     s.market,
		Qty:        s.sellQty(idx, size),
		Side:       model.SideSell,
		Type:       model.TypeLimit,
		LimitPrice: lvl,
		Timestamp:  at,
		Closes:     closes,
	})
}

// sellQty is what the buy one level below idx would have acquired.
func (s *GridStrategy) sellQty(idx int, size float64) float64 {
	if below, ok := s.grid.LevelAt(idx + 1); ok && below > 0 {
		return size / below
	}
	lvl, _ := s.grid.LevelAt(idx)
	below := lvl - s.grid.Step()
	if below <= 0 {
		return size / lvl
	}
	return size / below
}

// positionSize is the quote amount allotted to one grid level.
func (s *GridStrategy) positionSize(price float64) float64 {
	return s.wallet.Value(s.market, price) / float64(s.grid.Len())
}
