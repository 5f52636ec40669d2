package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

const (
	DefaultExchangeURL = "https://api.binance.us"
	DefaultPageLimit   = 1000
	klinesPath         = "/api/v3/klines"
)

// ExchangeClient fetches OHLCV candles from a klines-style REST endpoint:
//
//	GET /api/v3/klines?symbol=BTCUSD&interval=1h&startTime=<ms>&limit=<n>
//
// which answers with an array of [open_time_ms, open, high, low, close, volume, ...]
// rows. Prices may be encoded as JSON numbers or strings.
type ExchangeClient struct {
	APIKey    string
	BaseURL   string
	PageLimit int
	Client    *http.Client

	// Retries is how many times a 429 or 5xx answer is retried.
	Retries int
	Backoff time.Duration

	log zerolog.Logger
}

// NewExchangeClient creates a client. An empty baseURL selects DefaultExchangeURL.
func NewExchangeClient(apiKey, baseURL string, log zerolog.Logger) *ExchangeClient {
	if baseURL == "" {
		baseURL = DefaultExchangeURL
	}
	return &ExchangeClient{
		APIKey:    apiKey,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		PageLimit: DefaultPageLimit,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		Retries: 3,
		Backoff: time.Second,
		log:     log.With().Str("component", "exchange").Logger(),
	}
}

// ExchangeError represents a non-200 answer from the exchange.
type ExchangeError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string // For rate limit errors
}

func (e *ExchangeError) Error() string {
	return e.Message
}

// Temporary reports whether the request may succeed when retried.
func (e *ExchangeError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Symbol is the exchange symbol for m, e.g. BTCUSD.
func Symbol(m model.Market) string {
	return m.Base + m.Quote
}

// FetchCandles returns one page of candles opening at or after since.
func (c *ExchangeClient) FetchCandles(ctx context.Context, m model.Market, timeframe string, since time.Time) ([]model.Candle, error) {
	if _, err := model.ParseTimeframe(timeframe); err != nil {
		return nil, err
	}
	u, err := url.Parse(c.BaseURL + klinesPath)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("symbol", Symbol(m))
	q.Set("interval", timeframe)
	q.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
	if c.PageLimit > 0 {
		q.Set("limit", strconv.Itoa(c.PageLimit))
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt, lastErr)
			c.log.Warn().Err(lastErr).Int("attempt", attempt).Dur("wait", wait).Msg("retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		candles, err := c.get(ctx, u)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		if ee, ok := err.(*ExchangeError); !ok || !ee.Temporary() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *ExchangeClient) backoff(attempt int, err error) time.Duration {
	if ee, ok := err.(*ExchangeError); ok && ee.RetryAfter != "" {
		if secs, perr := strconv.Atoi(ee.RetryAfter); perr == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return c.Backoff * time.Duration(1<<(attempt-1))
}

func (c *ExchangeClient) get(ctx context.Context, u *url.URL) ([]model.Candle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.APIKey)
	}

	started := time.Now()
	resp, err := c.Client.Do(req)
	duration := time.Since(started)
	if err != nil {
		c.log.Error().Err(err).Dur("duration", duration).Msg("request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("path", u.Path).
		Str("query", u.RawQuery).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("response")

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &ExchangeError{
			StatusCode: resp.StatusCode,
			Code:       "UNAUTHORIZED",
			Message:    "Unauthorized: invalid API key or insufficient permissions",
		}
	case http.StatusTooManyRequests, 418:
		retryAfter := resp.Header.Get("Retry-After")
		return nil, &ExchangeError{
			StatusCode: http.StatusTooManyRequests,
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    fmt.Sprintf("Rate limit exceeded. Retry after: %s", retryAfter),
			RetryAfter: retryAfter,
		}
	case http.StatusBadRequest:
		var body struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, &ExchangeError{
			StatusCode: resp.StatusCode,
			Code:       "BAD_REQUEST",
			Message:    fmt.Sprintf("Bad request: %s", body.Msg),
		}
	default:
		return nil, &ExchangeError{
			StatusCode: resp.StatusCode,
			Code:       "API_ERROR",
			Message:    fmt.Sprintf("API returned status %d: %s", resp.StatusCode, resp.Status),
		}
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	candles, err := decodeRows(rows)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Int("candles", len(candles)).Msg("received candles")
	return candles, nil
}

// decodeRows converts raw kline rows whose fields may be numbers or numeric
// strings.
func decodeRows(rows [][]json.RawMessage) ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(rows))
	for i, raw := range rows {
		n := len(raw)
		if n > 6 {
			n = 6
		}
		vals := make([]float64, n)
		for j := 0; j < n; j++ {
			v, err := parseNumber(raw[j])
			if err != nil {
				return nil, fmt.Errorf("row %d field %d: %w", i, j, err)
			}
			vals[j] = v
		}
		c, err := model.CandleFromRow(vals)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	return strconv.ParseFloat(s, 64)
}
