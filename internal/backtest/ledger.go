package backtest

import (
	"time"

	"grid-backtest/internal/model"
)

// TradeRow is one filled order as written to trades.csv.
// This is the primary artifact for "what happened" in a backtest.
type TradeRow struct {
	OrderID int64     `json:"order_id"`
	Time    time.Time `json:"time"`

	Side model.Side      `json:"side"`
	Type model.OrderType `json:"type"`

	Qty   float64 `json:"qty"`
	Price float64 `json:"price"`
	Fee   float64 `json:"fee"`

	// ClosesID is the order this one closes, 0 when it opens a position.
	ClosesID int64 `json:"closes_id,omitempty"`
	// RealizedPNL is set on closing orders only: (sell - buy) * qty - fees.
	RealizedPNL float64 `json:"realized_pnl"`
	CumPNL      float64 `json:"cum_pnl"`
}

type Result struct {
	Market    model.Market `json:"market"`
	Timeframe string       `json:"timeframe"`
	Levels    []float64    `json:"levels"`

	Candles      []model.Candle `json:"-"`
	FilledOrders []*model.Order `json:"-"`
	Trades       []TradeRow     `json:"trades"`
	Equity       []EquityPoint  `json:"equity"`

	InitialWallet map[string]float64 `json:"initial_wallet"`
	FinalWallet   map[string]float64 `json:"final_wallet"`
	InitialPrice  float64            `json:"initial_price"`
	FinalPrice    float64            `json:"final_price"`
	InitialValue  float64            `json:"initial_value"`
	FinalValue    float64            `json:"final_value"`
	RealizedPNL   float64            `json:"realized_pnl"`

	Events int `json:"events"`
}

// BuildTrades turns filled orders (in fill order) into trade rows.
func BuildTrades(filled []*model.Order) []TradeRow {
	rows := make([]TradeRow, 0, len(filled))
	cum := 0.0
	for _, o := range filled {
		row := TradeRow{
			OrderID: o.ID,
			Time:    o.FilledAt(),
			Side:    o.Side,
			Type:    o.Type,
			Qty:     o.FilledQty(),
			Price:   o.AvgFillPrice(),
			Fee:     totalFee(o),
		}
		if o.Closes != nil {
			row.ClosesID = o.Closes.ID
			row.RealizedPNL = realized(o)
			cum += row.RealizedPNL
		}
		row.CumPNL = cum
		rows = append(rows, row)
	}
	return rows
}

func realized(o *model.Order) float64 {
	open := o.Closes
	var buy, sell float64
	switch o.Side {
	case model.SideSell:
		buy, sell = open.AvgFillPrice(), o.AvgFillPrice()
	case model.SideBuy:
		buy, sell = o.AvgFillPrice(), open.AvgFillPrice()
	}
	return (sell-buy)*o.FilledQty() - totalFee(o) - totalFee(open)
}

func totalFee(o *model.Order) float64 {
	fee := 0.0
	for _, f := range o.Fills {
		fee += f.Fee
	}
	return fee
}
