package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRange = errors.New("upper price must be >= lower price")
	ErrInvalidStep  = errors.New("price step must be > 0")
	ErrOutOfRange   = errors.New("price outside grid range")
)

// Grid is an immutable, strictly descending set of price levels:
//
//	upper, upper-step, upper-2*step, ... (>= lower)
//
// The last level equals lower only when the span is a multiple of step.
// Arithmetic is done in decimal so that levels and floor/ceil of price/step do
// not drift the way repeated float subtraction does.
type Grid struct {
	upper decimal.Decimal
	lower decimal.Decimal
	step  decimal.Decimal

	levels []float64
}

func NewGrid(upper, lower, step float64) (*Grid, error) {
	if upper < lower {
		return nil, fmt.Errorf("grid %g..%g: %w", lower, upper, ErrInvalidRange)
	}
	if step <= 0 {
		return nil, fmt.Errorf("grid step %g: %w", step, ErrInvalidStep)
	}
	g := &Grid{
		upper: decimal.NewFromFloat(upper),
		lower: decimal.NewFromFloat(lower),
		step:  decimal.NewFromFloat(step),
	}
	n := g.upper.Sub(g.lower).Div(g.step).Floor().IntPart() + 1
	g.levels = make([]float64, 0, n)
	for i := int64(0); i < n; i++ {
		lvl := g.upper.Sub(g.step.Mul(decimal.NewFromInt(i)))
		g.levels = append(g.levels, lvl.InexactFloat64())
	}
	return g, nil
}

func (g *Grid) Upper() float64 { return g.upper.InexactFloat64() }
func (g *Grid) Lower() float64 { return g.lower.InexactFloat64() }
func (g *Grid) Step() float64  { return g.step.InexactFloat64() }
func (g *Grid) Len() int       { return len(g.levels) }

// Levels returns a copy of the levels, highest first.
func (g *Grid) Levels() []float64 {
	out := make([]float64, len(g.levels))
	copy(out, g.levels)
	return out
}

// LevelAt returns the level at index i (0 = upper).
func (g *Grid) LevelAt(i int) (float64, bool) {
	if i < 0 || i >= len(g.levels) {
		return 0, false
	}
	return g.levels[i], true
}

// CountBelowOrEqual is the number of levels <= price.
// A price at or below lower counts as 0 and a price at or above upper as Len.
func (g *Grid) CountBelowOrEqual(price float64) int {
	p := decimal.NewFromFloat(price)
	switch {
	case p.LessThanOrEqual(g.lower):
		return 0
	case p.GreaterThanOrEqual(g.upper):
		return len(g.levels)
	default:
		return int(p.Sub(g.lower).Div(g.step).Floor().IntPart()) + 1
	}
}

// CountAboveOrEqual is the number of levels >= price.
// A price at or below lower counts as Len and a price at or above upper as 0.
func (g *Grid) CountAboveOrEqual(price float64) int {
	p := decimal.NewFromFloat(price)
	switch {
	case p.LessThanOrEqual(g.lower):
		return len(g.levels)
	case p.GreaterThanOrEqual(g.upper):
		return 0
	default:
		return int(g.upper.Sub(p).Div(g.step).Floor().IntPart()) + 1
	}
}

// LevelAtOrBelow returns the next grid line at or below price.
func (g *Grid) LevelAtOrBelow(price float64) (float64, error) {
	p := decimal.NewFromFloat(price)
	switch {
	case p.LessThan(g.lower):
		return 0, fmt.Errorf("level at or below %g: %w", price, ErrOutOfRange)
	case p.GreaterThanOrEqual(g.upper):
		return g.Upper(), nil
	default:
		return p.Div(g.step).Floor().Mul(g.step).InexactFloat64(), nil
	}
}

// LevelAtOrAbove returns the next grid line at or above price.
func (g *Grid) LevelAtOrAbove(price float64) (float64, error) {
	p := decimal.NewFromFloat(price)
	switch {
	case p.GreaterThan(g.upper):
		return 0, fmt.Errorf("level at or above %g: %w", price, ErrOutOfRange)
	case p.LessThanOrEqual(g.lower):
		return g.Lower(), nil
	default:
		return p.Div(g.step).Ceil().Mul(g.step).InexactFloat64(), nil
	}
}

// IndexOf rounds price to the nearest multiple of step and returns its index
// counted from the top. Prices outside the grid clamp to the first or last
// index rather than failing.
func (g *Grid) IndexOf(price float64) int {
	nearest := decimal.NewFromFloat(price).Div(g.step).Round(0).Mul(g.step)
	idx := int(g.upper.Sub(nearest).Div(g.step).Round(0).IntPart())
	if idx > len(g.levels)-1 {
		idx = len(g.levels) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// IsLevel reports whether price sits exactly on a grid line.
func (g *Grid) IsLevel(price float64) bool {
	p := decimal.NewFromFloat(price)
	if p.LessThan(g.lower) || p.GreaterThan(g.upper) {
		return false
	}
	return g.upper.Sub(p).Mod(g.step).IsZero()
}

// firstIndexAtOrBelow is the index of the highest level <= price, or -1.
func (g *Grid) firstIndexAtOrBelow(price float64) int {
	for i, lvl := range g.levels {
		if lvl <= price {
			return i
		}
	}
	return -1
}

// lastIndexAtOrAbove is the index of the lowest level >= price, or -1.
func (g *Grid) lastIndexAtOrAbove(price float64) int {
	for i := len(g.levels) - 1; i >= 0; i-- {
		if g.levels[i] >= price {
			return i
		}
	}
	return -1
}
