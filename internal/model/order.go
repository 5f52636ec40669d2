package model

import (
	"fmt"
	"math"
	"time"
)

// Side is the direction of an order.
// Keep these values stable; they are intended for CSV and JSON output.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

// QtyTolerance is the absolute tolerance used when comparing filled and
// requested quantities.
const QtyTolerance = 1e-9

// Fill is one execution of an order. Fills are never mutated once created.
type Fill struct {
	Qty       float64
	Price     float64
	Fee       float64
	Timestamp time.Time
}

// OrderRequest carries everything the matching engine needs to create an order.
// Qty is expected to be positive; the engine does not check it.
type OrderRequest struct {
	Market     Market
	Qty        float64
	Side       Side
	Type       OrderType
	LimitPrice float64 // LIMIT only
	Timestamp  time.Time
	Closes     *Order // optional: the order this one closes
}

type Order struct {
	ID         int64
	Market     Market
	Side       Side
	Type       OrderType
	Qty        float64
	LimitPrice float64
	CreatedAt  time.Time

	// Closes links a closing order to the opening order of a round trip.
	Closes *Order

	Fills []Fill
}

func (o *Order) FilledQty() float64 {
	sum := 0.0
	for _, f := range o.Fills {
		sum += f.Qty
	}
	return sum
}

func (o *Order) RemainingQty() float64 {
	return math.Max(0, o.Qty-o.FilledQty())
}

func (o *Order) IsFilled() bool {
	return math.Abs(o.Qty-o.FilledQty()) <= QtyTolerance
}

// AvgFillPrice is the quantity-weighted execution price, 0 when unfilled.
func (o *Order) AvgFillPrice() float64 {
	qty, notional := 0.0, 0.0
	for _, f := range o.Fills {
		qty += f.Qty
		notional += f.Qty * f.Price
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}

// FilledAt is the timestamp of the last fill, zero when unfilled.
func (o *Order) FilledAt() time.Time {
	if len(o.Fills) == 0 {
		return time.Time{}
	}
	return o.Fills[len(o.Fills)-1].Timestamp
}

func (o *Order) String() string {
	if o.Type == TypeLimit {
		return fmt.Sprintf("#%d %s %s %s %g @ %g", o.ID, o.Market, o.Type, o.Side, o.Qty, o.LimitPrice)
	}
	return fmt.Sprintf("#%d %s %s %s %g", o.ID, o.Market, o.Type, o.Side, o.Qty)
}
