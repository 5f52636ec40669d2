package model

import (
	"fmt"
	"strings"
)

// Market is a spot pair (Base/Quote) or a single instrument when Quote is empty.
// Markets are comparable values and can be used as map keys.
type Market struct {
	Base  string
	Quote string
}

func NewSpotMarket(base, quote string) Market {
	return Market{Base: base, Quote: quote}
}

func (m Market) IsSpot() bool { return m.Quote != "" }

// Symbol renders the market the way exchanges name it, e.g. "BTC/USD".
func (m Market) Symbol() string {
	if m.IsSpot() {
		return m.Base + "/" + m.Quote
	}
	return m.Base
}

func (m Market) String() string { return m.Symbol() }

// ParseMarket accepts "BASE/QUOTE" or "BASE".
func ParseMarket(s string) (Market, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Market{}, fmt.Errorf("empty market")
	}
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		return Market{Base: strings.ToUpper(parts[0])}, nil
	case 2:
		base := strings.ToUpper(strings.TrimSpace(parts[0]))
		quote := strings.ToUpper(strings.TrimSpace(parts[1]))
		if base == "" || quote == "" {
			return Market{}, fmt.Errorf("invalid market %q, expected BASE/QUOTE", s)
		}
		return Market{Base: base, Quote: quote}, nil
	default:
		return Market{}, fmt.Errorf("invalid market %q, expected BASE/QUOTE", s)
	}
}
