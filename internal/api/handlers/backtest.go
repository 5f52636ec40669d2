package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/api/models"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/model"
)

// Data source types accepted in requests.
const (
	SourceExchange = "exchange"
	SourceInline   = "inline"
)

// compareCacheTTL only has to outlive one comparison request.
const compareCacheTTL = 10 * time.Minute

// BacktestHandler handles backtest-related requests
type BacktestHandler struct {
	exchange  data.Source
	walletDir string
	results   *ResultStore
	engine    *backtest.Engine
	log       zerolog.Logger
}

// NewBacktestHandler creates a new backtest handler. exchange serves the
// "exchange" data source and may be nil when only inline candles are used.
func NewBacktestHandler(exchange data.Source, walletDir string, results *ResultStore, log zerolog.Logger) *BacktestHandler {
	log = log.With().Str("handler", "backtest").Logger()
	return &BacktestHandler{
		exchange:  exchange,
		walletDir: walletDir,
		results:   results,
		engine:    backtest.New(log),
		log:       log,
	}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req models.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	src, err := h.source(req.DataSource)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_DATA_SOURCE", err.Error())
		return
	}

	cfg, err := h.buildRunConfig(req.DataSource, req.Config, src)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	result, err := h.engine.Run(c.Request.Context(), cfg)
	if err != nil {
		writeRunError(c, err)
		return
	}

	summary := analysis.Summarize(result)
	entry := h.results.Put(result, summary)
	h.log.Info().
		Str("id", entry.ID).
		Str("market", summary.Market).
		Int("fills", summary.Fills).
		Float64("return_pct", summary.ReturnPct).
		Msg("Backtest completed")

	c.JSON(http.StatusOK, buildResponse(entry, req.Options))
}

// GetBacktest handles GET /api/v1/backtest/:id
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, buildResponse(entry, models.BacktestOptions{}))
}

// GetTrades handles GET /api/v1/backtest/:id/trades
func (h *BacktestHandler) GetTrades(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     entry.ID,
		"trades": entry.Result.Trades,
		"count":  len(entry.Result.Trades),
	})
}

// GetEquity handles GET /api/v1/backtest/:id/equity
// With collapse=true only the highest value per timestamp is returned.
func (h *BacktestHandler) GetEquity(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}
	points := entry.Result.Equity
	if c.Query("collapse") == "true" {
		points = backtest.CollapseMax(points)
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     entry.ID,
		"equity": points,
		"count":  len(points),
	})
}

// GetCandles handles GET /api/v1/backtest/:id/candles
func (h *BacktestHandler) GetCandles(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      entry.ID,
		"candles": entry.Result.Candles,
		"count":   len(entry.Result.Candles),
	})
}

// CompareBacktests handles POST /api/v1/backtest/compare
// Every variation runs over the same candles; results are ranked by return.
func (h *BacktestHandler) CompareBacktests(c *gin.Context) {
	var req models.CompareBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(req.Variations) == 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "at least one variation is required")
		return
	}
	seen := make(map[string]bool, len(req.Variations))
	for _, v := range req.Variations {
		if v.Name == "" || seen[v.Name] {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("variation names must be unique and non-empty, got %q", v.Name))
			return
		}
		seen[v.Name] = true
	}

	src, err := h.source(req.DataSource)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_DATA_SOURCE", err.Error())
		return
	}
	// Fetch each page once for all variations
	src = data.NewCachedSource(src, compareCacheTTL)

	ranked := make([]analysis.RankedSummary, 0, len(req.Variations))
	ids := make(map[string]string, len(req.Variations))
	var skipped []models.SkippedVariation
	var window models.TimeWindow

	for _, variation := range req.Variations {
		merged := mergeConfig(req.BaseConfig, variation.Config)
		cfg, err := h.buildRunConfig(req.DataSource, merged, src)
		if err != nil {
			skipped = append(skipped, models.SkippedVariation{Name: variation.Name, Reason: err.Error()})
			continue
		}

		result, err := h.engine.Run(c.Request.Context(), cfg)
		if err != nil {
			var exErr *data.ExchangeError
			if errors.As(err, &exErr) || errors.Is(err, backtest.ErrNoCandles) {
				// Same data for every variation: no point in going on.
				writeRunError(c, err)
				return
			}
			h.log.Warn().Err(err).Str("variation", variation.Name).Msg("Variation failed")
			skipped = append(skipped, models.SkippedVariation{Name: variation.Name, Reason: err.Error()})
			continue
		}

		summary := analysis.Summarize(result)
		entry := h.results.Put(result, summary)
		ids[variation.Name] = entry.ID
		ranked = append(ranked, analysis.RankedSummary{Label: variation.Name, Summary: summary})
		window = models.TimeWindow{Start: summary.Start, End: summary.End}
	}

	ranked = analysis.RankByReturn(ranked)
	comparison := make([]models.ComparisonResult, 0, len(ranked))
	for _, r := range ranked {
		comparison = append(comparison, models.ComparisonResult{
			ID:      ids[r.Label],
			Name:    r.Label,
			Rank:    r.Rank,
			Summary: r.Summary,
		})
	}

	c.JSON(http.StatusOK, models.CompareBacktestResponse{
		Window:     window,
		Comparison: comparison,
		Skipped:    skipped,
	})
}

// Helper methods

func (h *BacktestHandler) lookup(c *gin.Context) (*StoredResult, bool) {
	id := c.Param("id")
	entry, ok := h.results.Get(id)
	if !ok {
		writeError(c, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no backtest with id %q", id))
		return nil, false
	}
	return entry, true
}

func (h *BacktestHandler) source(ds models.DataSourceConfig) (data.Source, error) {
	switch ds.Type {
	case SourceExchange:
		if h.exchange == nil {
			return nil, errors.New("exchange data source is not configured")
		}
		return h.exchange, nil
	case SourceInline:
		if len(ds.Candles) == 0 {
			return nil, errors.New("candles are required for inline data source")
		}
		candles := make([]model.Candle, 0, len(ds.Candles))
		for i, row := range ds.Candles {
			candle, err := model.CandleFromRow(row)
			if err != nil {
				return nil, fmt.Errorf("candles[%d]: %w", i, err)
			}
			candles = append(candles, candle)
		}
		return data.NewStaticSource(candles, 0), nil
	default:
		return nil, fmt.Errorf("unsupported data source type: %s", ds.Type)
	}
}

// buildRunConfig validates the request the same way config files are
// validated and turns it into an engine run.
func (h *BacktestHandler) buildRunConfig(ds models.DataSourceConfig, req models.BacktestConfig, src data.Source) (backtest.RunConfig, error) {
	cfg := &config.Config{
		Market:    ds.Market,
		Timeframe: ds.Timeframe,
		Start:     ds.StartDate,
		End:       ds.EndDate,
		Wallet:    req.Wallet,
		Strategy: config.StrategyConfig{
			Name:   req.Strategy.Name,
			Params: req.Strategy.Params,
		},
	}

	// wallet_file is a preset name (e.g. "default") looked up in the wallet directory
	if req.WalletFile != "" {
		name := strings.TrimSuffix(filepath.Base(req.WalletFile), ".yaml")
		walletPath := filepath.Join(h.walletDir, name+".yaml")
		loaded, err := config.LoadUnchecked(walletPath)
		if err != nil {
			return backtest.RunConfig{}, fmt.Errorf("wallet_file %q: %w", req.WalletFile, err)
		}
		cfg.Wallet = config.MergeWallet(loaded.Wallet, cfg.Wallet)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return backtest.RunConfig{}, err
	}
	start, end, _ := cfg.Range()
	grid, _ := cfg.GridParams()

	return backtest.RunConfig{
		Market:    cfg.MarketValue(),
		Timeframe: cfg.Timeframe,
		Start:     start,
		End:       end,
		Wallet:    cfg.Wallet,
		Grid:      grid,
		Source:    src,
	}, nil
}

// mergeConfig overlays a variation onto the base config. Wallet balances and
// strategy params are merged per key.
func mergeConfig(base, override models.BacktestConfig) models.BacktestConfig {
	merged := base
	if override.WalletFile != "" {
		merged.WalletFile = override.WalletFile
	}
	if len(override.Wallet) > 0 {
		merged.Wallet = config.MergeWallet(base.Wallet, override.Wallet)
	}
	if override.Strategy.Name != "" {
		merged.Strategy.Name = override.Strategy.Name
	}
	params := make(map[string]interface{}, len(base.Strategy.Params)+len(override.Strategy.Params))
	for k, v := range base.Strategy.Params {
		params[k] = v
	}
	for k, v := range override.Strategy.Params {
		params[k] = v
	}
	merged.Strategy.Params = params
	return merged
}

func buildResponse(entry *StoredResult, opts models.BacktestOptions) models.BacktestResponse {
	res := entry.Result
	response := models.BacktestResponse{
		ID:      entry.ID,
		Status:  "completed",
		Summary: entry.Summary,
		Levels:  res.Levels,
		Wallet: models.WalletChange{
			Initial: res.InitialWallet,
			Final:   res.FinalWallet,
		},
	}
	if opts.IncludeTrades {
		response.Trades = res.Trades
	}
	if opts.IncludeEquity {
		response.Equity = res.Equity
	}
	return response
}

// writeRunError maps exchange failures to the matching HTTP status and
// everything else to a backtest error.
func writeRunError(c *gin.Context, err error) {
	var exErr *data.ExchangeError
	if errors.As(err, &exErr) {
		statusCode := http.StatusBadRequest
		switch {
		case exErr.StatusCode == http.StatusForbidden || exErr.StatusCode == http.StatusUnauthorized:
			statusCode = http.StatusUnauthorized
		case exErr.StatusCode == http.StatusTooManyRequests:
			statusCode = http.StatusTooManyRequests
		case exErr.StatusCode >= 500:
			statusCode = http.StatusBadGateway
		}
		c.JSON(statusCode, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    exErr.Code,
				Message: exErr.Message,
				Details: map[string]interface{}{
					"status_code": exErr.StatusCode,
					"retry_after": exErr.RetryAfter,
				},
			},
		})
		return
	}
	if errors.Is(err, backtest.ErrNoCandles) {
		writeError(c, http.StatusUnprocessableEntity, "NO_DATA", err.Error())
		return
	}
	writeError(c, http.StatusInternalServerError, "BACKTEST_ERROR", err.Error())
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
