// Package broker contains the simulated matching engine used by backtests.
//
// The engine has no book depth: every resting order is matched against the
// current simulated price only, and a matching order always fills completely
// at that price. Orders, fills and wallet updates happen synchronously inside
// OnPriceChanged, and fill notifications are delivered only after the whole
// price event has been processed.
package broker

import (
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

// Simulated is a single-threaded matching engine bound to one wallet.
// Order ids are unique within one engine and start at 1.
type Simulated struct {
	wallet *model.Wallet
	log    zerolog.Logger

	nextID int64
	open   []*model.Order
	filled []*model.Order

	listeners []model.FillListener
}

func NewSimulated(wallet *model.Wallet, log zerolog.Logger) *Simulated {
	return &Simulated{
		wallet: wallet,
		log:    log.With().Str("component", "broker").Logger(),
		nextID: 1,
	}
}

func (b *Simulated) AddListener(l model.FillListener) {
	b.listeners = append(b.listeners, l)
}

func (b *Simulated) RemoveListener(l model.FillListener) {
	for i, cur := range b.listeners {
		if cur == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// CreateOrder registers a new open order and returns it.
// req.Qty must be positive; it is not validated here.
func (b *Simulated) CreateOrder(req model.OrderRequest) *model.Order {
	o := &model.Order{
		ID:         b.nextID,
		Market:     req.Market,
		Side:       req.Side,
		Type:       req.Type,
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
		CreatedAt:  req.Timestamp,
		Closes:     req.Closes,
	}
	b.nextID++
	b.open = append(b.open, o)

	b.log.Debug().Stringer("order", o).Msg("order created")
	return o
}

// CancelOrder removes an open order. Canceling an id that is not open (never
// existed, already filled, already canceled) is logged and ignored.
func (b *Simulated) CancelOrder(id int64) bool {
	for i, o := range b.open {
		if o.ID == id {
			b.open = append(b.open[:i], b.open[i+1:]...)
			b.log.Debug().Int64("order", id).Msg("order canceled")
			return true
		}
	}
	b.log.Warn().Int64("order", id).Msg("cancel: order not found")
	return false
}

// CancelAll removes every open order for m and returns how many were removed.
func (b *Simulated) CancelAll(m model.Market) int {
	remaining := b.open[:0]
	canceled := 0
	for _, o := range b.open {
		if o.Market == m {
			canceled++
			b.log.Debug().Stringer("order", o).Msg("order canceled")
			continue
		}
		remaining = append(remaining, o)
	}
	// clear the tail so dropped orders can be collected
	for i := len(remaining); i < len(b.open); i++ {
		b.open[i] = nil
	}
	b.open = remaining
	return canceled
}

type notification struct {
	order *model.Order
	fill  model.Fill
}

// OnPriceChanged matches every open order of market m against price.
//
//   - MARKET orders fill completely at price.
//   - LIMIT BUY fills when price <= limit; LIMIT SELL fills when price >= limit.
//   - Unknown order types are skipped and stay open.
//
// Orders created by listeners while notifications are delivered are not
// considered for this price.
func (b *Simulated) OnPriceChanged(m model.Market, price float64, at time.Time) {
	pending := b.open
	b.open = make([]*model.Order, 0, len(pending))

	var notifications []notification
	for _, o := range pending {
		if o.Market != m || !b.matches(o, price) {
			b.open = append(b.open, o)
			continue
		}
		f := model.Fill{Qty: o.RemainingQty(), Price: price, Timestamp: at}
		b.settle(o, f)
		if o.IsFilled() {
			b.filled = append(b.filled, o)
		} else {
			b.open = append(b.open, o)
		}
		notifications = append(notifications, notification{order: o, fill: f})
	}

	for _, n := range notifications {
		for _, l := range b.listeners {
			l.OnOrderFilled(n.order, n.fill)
		}
	}
}

func (b *Simulated) matches(o *model.Order, price float64) bool {
	switch o.Type {
	case model.TypeMarket:
		return true
	case model.TypeLimit:
		switch o.Side {
		case model.SideBuy:
			return price <= o.LimitPrice
		case model.SideSell:
			return price >= o.LimitPrice
		}
	}
	return false
}

// settle books the fill in the wallet and appends it to the order in one step.
func (b *Simulated) settle(o *model.Order, f model.Fill) {
	b.wallet.Settle(o.Market, o.Side, f)
	o.Fills = append(o.Fills, f)

	b.log.Debug().
		Stringer("order", o).
		Float64("price", f.Price).
		Stringer("wallet", b.wallet).
		Msg("order filled")
}

// CandidateOrders returns every open order that could fill while price moves
// continuously between from and to: all MARKET orders, LIMIT BUYs at or above the
// lower end of the range and LIMIT SELLs at or below the upper end. This is a
// superset; the fill decision is still made by OnPriceChanged.
func (b *Simulated) CandidateOrders(from, to float64) []*model.Order {
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	var out []*model.Order
	for _, o := range b.open {
		switch o.Type {
		case model.TypeMarket:
			out = append(out, o)
		case model.TypeLimit:
			switch o.Side {
			case model.SideBuy:
				if o.LimitPrice >= lo {
					out = append(out, o)
				}
			case model.SideSell:
				if o.LimitPrice <= hi {
					out = append(out, o)
				}
			}
		}
	}
	return out
}

// OpenOrders returns a copy of the open set in creation order.
func (b *Simulated) OpenOrders() []*model.Order {
	out := make([]*model.Order, len(b.open))
	copy(out, b.open)
	return out
}

// FilledOrders returns a copy of the filled set in fill order.
func (b *Simulated) FilledOrders() []*model.Order {
	out := make([]*model.Order, len(b.filled))
	copy(out, b.filled)
	return out
}
