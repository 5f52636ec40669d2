package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/backtest"
)

// DefaultMaxResults bounds how many runs the API keeps in memory.
const DefaultMaxResults = 100

// StoredResult is one finished run.
type StoredResult struct {
	ID      string
	Created time.Time
	Result  *backtest.Result
	Summary analysis.Summary
}

// ResultStore keeps finished runs so trades, equity and candles can be
// fetched after the backtest request returned. Oldest runs are evicted first.
type ResultStore struct {
	mu    sync.RWMutex
	max   int
	order []string
	runs  map[string]*StoredResult
}

func NewResultStore(max int) *ResultStore {
	if max <= 0 {
		max = DefaultMaxResults
	}
	return &ResultStore{
		max:  max,
		runs: make(map[string]*StoredResult),
	}
}

// Put stores res under a new id and returns the entry.
func (s *ResultStore) Put(res *backtest.Result, summary analysis.Summary) *StoredResult {
	entry := &StoredResult{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Result:  res,
		Summary: summary,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	for len(s.order) > s.max {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return entry
}

func (s *ResultStore) Get(id string) (*StoredResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.runs[id]
	return entry, ok
}

func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
