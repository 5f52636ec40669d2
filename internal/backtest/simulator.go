package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

var ErrNoCandles = errors.New("no candles in backtest range")

// CandleSource returns candles for m starting at since. A source may return
// fewer candles than exist (one page); the simulator keeps asking from the
// last returned candle until it reaches the end of the range.
type CandleSource interface {
	FetchCandles(ctx context.Context, m model.Market, timeframe string, since time.Time) ([]model.Candle, error)
}

// OrderBook exposes the resting orders the simulator needs to place extra
// price points at their limits.
type OrderBook interface {
	CandidateOrders(from, to float64) []*model.Order
}

type SimulatorConfig struct {
	Market    model.Market
	Timeframe string
	Start     time.Time
	// End is inclusive. Zero means "until the source runs out".
	End time.Time
}

// Simulator replays historical candles as a sequence of price events.
//
// Each candle is walked open, low, high, close when it is green and open,
// high, low, close otherwise. While walking from one point to the next, the
// limit price of every resting order crossed on the way is emitted as its own
// event, nearest first, so that orders fill at their limit in the order the
// price would have reached them.
type Simulator struct {
	cfg    SimulatorConfig
	source CandleSource
	orders OrderBook
	log    zerolog.Logger

	series    *Series
	loaded    bool
	listeners map[model.Market][]model.PriceListener

	price  float64
	at     time.Time
	events int
}

func NewSimulator(cfg SimulatorConfig, source CandleSource, orders OrderBook, log zerolog.Logger) *Simulator {
	return &Simulator{
		cfg:       cfg,
		source:    source,
		orders:    orders,
		log:       log.With().Str("component", "simulator").Str("market", cfg.Market.Symbol()).Logger(),
		series:    NewSeries(),
		listeners: make(map[model.Market][]model.PriceListener),
		at:        cfg.Start,
	}
}

// AddListener registers l for price events of m. Listeners are called in
// registration order.
func (s *Simulator) AddListener(m model.Market, l model.PriceListener) {
	s.listeners[m] = append(s.listeners[m], l)
}

func (s *Simulator) RemoveListener(l model.PriceListener) {
	for m, ls := range s.listeners {
		for i, cur := range ls {
			if cur == l {
				s.listeners[m] = append(ls[:i], ls[i+1:]...)
				break
			}
		}
	}
}

// Load downloads the candle range page by page and primes the current price
// with the first candle's open. It is safe to call more than once.
func (s *Simulator) Load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	since := s.cfg.Start
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.source.FetchCandles(ctx, s.cfg.Market, s.cfg.Timeframe, since)
		if err != nil {
			return fmt.Errorf("fetch candles since %s: %w", since.Format(time.RFC3339), err)
		}
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			s.series.Put(c)
		}
		last := page[len(page)-1].Time
		s.log.Info().
			Time("since", since).
			Time("progress", last).
			Int("page", len(page)).
			Int("total", s.series.Len()).
			Msg("downloaded candles")

		if !last.After(since) {
			break
		}
		since = last
		if !s.cfg.End.IsZero() && !since.Before(s.cfg.End) {
			break
		}
	}
	if !s.cfg.End.IsZero() {
		s.series.TrimAfter(s.cfg.End)
	}

	first, ok := s.series.First()
	if !ok {
		return ErrNoCandles
	}
	s.price = first.Open
	s.at = first.Time
	s.loaded = true

	s.log.Info().Int("candles", s.series.Len()).Float64("price", s.price).Msg("candles loaded")
	return nil
}

// Run replays every loaded candle. Load is called first when needed.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("backtest started")
	for _, c := range s.series.Candles() {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := c.Path()
		for i := 0; i < len(path)-1; i++ {
			s.move(path[i], path[i+1], c.Time)
		}
		s.emit(path[len(path)-1], c.Time)
	}
	s.log.Info().Int("events", s.events).Msg("backtest complete")
	return nil
}

// move emits a, then every resting limit strictly between a and b.
// b itself is emitted by the next leg.
func (s *Simulator) move(a, b float64, at time.Time) {
	s.emit(a, at)
	last := a
	for {
		next, ok := s.nextLimit(last, b)
		if !ok {
			return
		}
		s.log.Debug().Float64("price", next).Msg("simulate additional price point")
		s.emit(next, at)
		last = next
	}
}

// nextLimit is the limit price nearest to from on the way to to.
func (s *Simulator) nextLimit(from, to float64) (float64, bool) {
	var prices []float64
	for _, o := range s.orders.CandidateOrders(from, to) {
		if o.Type != model.TypeLimit || o.Market != s.cfg.Market || o.LimitPrice <= 0 {
			continue
		}
		if between(o.LimitPrice, from, to) {
			prices = append(prices, o.LimitPrice)
		}
	}
	if len(prices) == 0 {
		return 0, false
	}
	if from > to {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	return prices[0], true
}

// between reports whether p lies strictly inside (a, b) in either direction.
func between(p, a, b float64) bool {
	if a > b {
		a, b = b, a
	}
	return p > a && p < b
}

func (s *Simulator) emit(price float64, at time.Time) {
	s.price = price
	s.at = at
	s.events++
	for _, l := range s.listeners[s.cfg.Market] {
		l.OnPriceChanged(s.cfg.Market, price, at)
	}
}

// CurrentPrice is the last emitted price for the simulated market and 0 for
// any other.
func (s *Simulator) CurrentPrice(m model.Market) float64 {
	if m != s.cfg.Market {
		return 0
	}
	return s.price
}

func (s *Simulator) CurrentTime() time.Time { return s.at }

func (s *Simulator) Candles() []model.Candle { return s.series.Candles() }

// Events is the number of price events emitted so far.
func (s *Simulator) Events() int { return s.events }
