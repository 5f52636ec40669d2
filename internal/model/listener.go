package model

import "time"

// PriceListener receives every simulated price point for the markets it is
// registered on. Calls are synchronous.
type PriceListener interface {
	OnPriceChanged(m Market, price float64, at time.Time)
}

// FillListener receives one call per fill, after the price event that caused
// it has been fully processed.
type FillListener interface {
	OnOrderFilled(o *Order, f Fill)
}

// PriceSource answers "what is the price now" during a run.
type PriceSource interface {
	CurrentPrice(m Market) float64
}
