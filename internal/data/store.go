package data

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

// PebbleStore is an on-disk page cache for downloaded candles. It is keyed the
// same way as a FetchCandles call, so repeated CLI runs over the same range
// read from disk instead of the exchange.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open candle store %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// keys: p:<symbol>:<timeframe>:<8-byte since ms>
func pageKey(m model.Market, timeframe string, since time.Time) []byte {
	key := []byte("p:" + m.Symbol() + ":" + timeframe + ":")
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(since.UnixMilli()))
	return append(key, ts[:]...)
}

// SavePage stores one page of candles.
func (s *PebbleStore) SavePage(m model.Market, timeframe string, since time.Time, candles []model.Candle) error {
	rows := make([][]float64, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, c.Row())
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}
	if err := s.db.Set(pageKey(m, timeframe, since), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

// LoadPage returns a stored page. found is false when nothing was stored.
func (s *PebbleStore) LoadPage(m model.Market, timeframe string, since time.Time) (candles []model.Candle, found bool, err error) {
	data, closer, err := s.db.Get(pageKey(m, timeframe, since))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get page: %w", err)
	}
	defer closer.Close()

	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal page: %w", err)
	}
	candles = make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := model.CandleFromRow(row)
		if err != nil {
			return nil, false, err
		}
		candles = append(candles, c)
	}
	return candles, true, nil
}

// StoredSource reads pages from a PebbleStore and falls back to src,
// saving every non-empty page it fetches.
type StoredSource struct {
	src   Source
	store *PebbleStore
	log   zerolog.Logger
}

func NewStoredSource(src Source, store *PebbleStore, log zerolog.Logger) *StoredSource {
	return &StoredSource{src: src, store: store, log: log.With().Str("component", "candle-store").Logger()}
}

func (s *StoredSource) FetchCandles(ctx context.Context, m model.Market, timeframe string, since time.Time) ([]model.Candle, error) {
	candles, found, err := s.store.LoadPage(m, timeframe, since)
	if err != nil {
		return nil, err
	}
	if found {
		s.log.Debug().Time("since", since).Int("candles", len(candles)).Msg("page from disk")
		return candles, nil
	}

	candles, err = s.src.FetchCandles(ctx, m, timeframe, since)
	if err != nil {
		return nil, err
	}
	// empty pages are not stored: the range may fill in later
	if len(candles) > 0 {
		if err := s.store.SavePage(m, timeframe, since, candles); err != nil {
			s.log.Warn().Err(err).Msg("could not store page")
		}
	}
	return candles, nil
}
