package strategy

import (
	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

// Broker is the order entry surface a strategy needs.
type Broker interface {
	CreateOrder(req model.OrderRequest) *model.Order
	CancelOrder(id int64) bool
	CancelAll(m model.Market) int
}

// Context bundles what a strategy trades against during a run.
type Context struct {
	Market model.Market
	Wallet *model.Wallet
	Broker Broker
	Prices model.PriceSource
	Log    zerolog.Logger
}

type Strategy interface {
	Name() string
	model.PriceListener
	model.FillListener
}
