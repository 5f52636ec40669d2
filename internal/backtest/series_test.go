package backtest

import "testing"

func TestSeriesOrdersAndReplaces(t *testing.T) {
	s := NewSeries()
	s.Put(candle(2, 3, 3, 3, 3))
	s.Put(candle(0, 1, 1, 1, 1))
	s.Put(candle(1, 2, 2, 2, 2))
	if replaced := s.Put(candle(1, 9, 9, 9, 9)); !replaced {
		t.Error("second candle at the same time should replace the first")
	}

	got := s.Candles()
	if len(got) != 3 {
		t.Fatalf("want 3 candles, got %d", len(got))
	}
	for i, c := range got {
		if !c.Time.Equal(hour(i)) {
			t.Errorf("candle %d at %v, want %v", i, c.Time, hour(i))
		}
	}
	if got[1].Close != 9 {
		t.Errorf("replaced candle close: want 9, got %v", got[1].Close)
	}
	if first, _ := s.First(); !first.Time.Equal(hour(0)) {
		t.Errorf("First: %v", first.Time)
	}
	if last, _ := s.Last(); !last.Time.Equal(hour(2)) {
		t.Errorf("Last: %v", last.Time)
	}
}

func TestSeriesTrimAfter(t *testing.T) {
	s := NewSeries()
	for i := 0; i < 5; i++ {
		s.Put(candle(i, 1, 1, 1, 1))
	}
	if n := s.TrimAfter(hour(2)); n != 2 {
		t.Errorf("want 2 trimmed, got %d", n)
	}
	if s.Len() != 3 {
		t.Errorf("want 3 left, got %d", s.Len())
	}
	if last, _ := s.Last(); !last.Time.Equal(hour(2)) {
		t.Errorf("candle opening at end is kept, last=%v", last.Time)
	}
	if n := NewSeries().TrimAfter(hour(0)); n != 0 {
		t.Errorf("empty series trimmed %d", n)
	}
}
