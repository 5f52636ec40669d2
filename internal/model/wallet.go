package model

import (
	"fmt"
	"sort"
	"strings"
)

// Wallet holds per-asset balances for a single backtest run.
// Balances are signed; the simulation does not reject trades that overdraw.
// A Wallet is not safe for concurrent use; a run owns exactly one.
type Wallet struct {
	balances map[string]float64
}

func NewWallet(balances map[string]float64) *Wallet {
	w := &Wallet{balances: make(map[string]float64, len(balances))}
	for asset, amount := range balances {
		w.balances[asset] = amount
	}
	return w
}

// Balance returns 0 for unknown assets.
func (w *Wallet) Balance(asset string) float64 {
	return w.balances[asset]
}

func (w *Wallet) SetBalance(asset string, amount float64) {
	w.balances[asset] = amount
}

// Settle books one fill of an order on market m.
// BUY: base += qty, quote -= qty*price + fee. SELL: base -= qty, quote += qty*price - fee.
// Both legs are written together; nothing observes a half-applied fill.
func (w *Wallet) Settle(m Market, side Side, f Fill) {
	base := w.balances[m.Base]
	quote := w.balances[m.Quote]
	switch side {
	case SideBuy:
		base += f.Qty
		quote -= f.Qty*f.Price + f.Fee
	case SideSell:
		base -= f.Qty
		quote += f.Qty*f.Price - f.Fee
	default:
		return
	}
	w.balances[m.Base] = base
	if m.IsSpot() {
		w.balances[m.Quote] = quote
	}
}

// Value is the portfolio value of market m in quote currency at price.
func (w *Wallet) Value(m Market, price float64) float64 {
	return w.balances[m.Quote] + w.balances[m.Base]*price
}

// Assets returns asset symbols in sorted order.
func (w *Wallet) Assets() []string {
	out := make([]string, 0, len(w.balances))
	for asset := range w.balances {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of all balances.
func (w *Wallet) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(w.balances))
	for asset, amount := range w.balances {
		out[asset] = amount
	}
	return out
}

func (w *Wallet) String() string {
	parts := make([]string, 0, len(w.balances))
	for _, asset := range w.Assets() {
		parts = append(parts, fmt.Sprintf("%s=%g", asset, w.balances[asset]))
	}
	return "Wallet{" + strings.Join(parts, " ") + "}"
}
