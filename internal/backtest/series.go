package backtest

import (
	"time"

	"github.com/google/btree"

	"grid-backtest/internal/model"
)

// Series is a candle set ordered by open time. Inserting a candle whose time
// is already present replaces the stored one.
type Series struct {
	tree *btree.BTreeG[model.Candle]
}

func NewSeries() *Series {
	return &Series{
		tree: btree.NewG(32, func(a, b model.Candle) bool {
			return a.Time.Before(b.Time)
		}),
	}
}

// Put stores c and reports whether it replaced an existing candle.
func (s *Series) Put(c model.Candle) bool {
	_, replaced := s.tree.ReplaceOrInsert(c)
	return replaced
}

func (s *Series) Len() int { return s.tree.Len() }

func (s *Series) First() (model.Candle, bool) { return s.tree.Min() }

func (s *Series) Last() (model.Candle, bool) { return s.tree.Max() }

// TrimAfter drops every candle that opens after end and returns how many went.
func (s *Series) TrimAfter(end time.Time) int {
	var drop []model.Candle
	s.tree.AscendGreaterOrEqual(model.Candle{Time: end}, func(c model.Candle) bool {
		if c.Time.After(end) {
			drop = append(drop, c)
		}
		return true
	})
	for _, c := range drop {
		s.tree.Delete(c)
	}
	return len(drop)
}

// Candles returns the series in chronological order.
func (s *Series) Candles() []model.Candle {
	out := make([]model.Candle, 0, s.tree.Len())
	s.tree.Ascend(func(c model.Candle) bool {
		out = append(out, c)
		return true
	})
	return out
}
