package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/api/models"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/model"
	"grid-backtest/internal/strategy"
)

const defaultRankLimit = 10

// RankHandler ranks grid price steps without running full backtests.
type RankHandler struct {
	exchange data.Source
	log      zerolog.Logger
}

// NewRankHandler creates a new rank handler
func NewRankHandler(exchange data.Source, log zerolog.Logger) *RankHandler {
	return &RankHandler{
		exchange: exchange,
		log:      log.With().Str("handler", "rank").Logger(),
	}
}

// RankSteps handles GET /api/v1/rank
// Each step is scored by how often the simulated price path crossed one of
// its levels, which bounds the round trips a grid of that step could make.
func (h *RankHandler) RankSteps(c *gin.Context) {
	var req models.RankRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	m, err := model.ParseMarket(req.Market)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = config.DefaultTimeframe
	}
	if _, err := model.ParseTimeframe(timeframe); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	start, err := config.ParseDate(req.StartDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_DATE", "start_date: "+err.Error())
		return
	}
	end, err := config.ParseDate(req.EndDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_DATE", "end_date: "+err.Error())
		return
	}
	if end.Before(start) {
		writeError(c, http.StatusBadRequest, "INVALID_DATE", "end_date must not be before start_date")
		return
	}

	steps, err := parseSteps(req.Steps)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	grids := make([]*strategy.Grid, 0, len(steps))
	for _, step := range steps {
		g, err := strategy.NewGrid(req.UpperPrice, req.LowerPrice, step)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "INVALID_GRID",
					Message: err.Error(),
					Details: map[string]interface{}{"price_step": step},
				},
			})
			return
		}
		grids = append(grids, g)
	}

	if h.exchange == nil {
		writeError(c, http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "exchange data source is not configured")
		return
	}
	sim := backtest.NewSimulator(backtest.SimulatorConfig{
		Market:    m,
		Timeframe: timeframe,
		Start:     start,
		End:       end,
	}, h.exchange, nil, h.log)
	if err := sim.Load(c.Request.Context()); err != nil {
		writeRunError(c, err)
		return
	}
	candles := sim.Candles()

	rankings := make([]models.Ranking, 0, len(grids))
	for _, g := range grids {
		n := analysis.LevelCrossings(candles, g.Levels())
		rankings = append(rankings, models.Ranking{
			PriceStep:      g.Step(),
			Levels:         g.Len(),
			LevelCrossings: n,
			EstimatedGross: float64(n/2) * g.Step(),
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].EstimatedGross > rankings[j].EstimatedGross
	})

	limit := req.Limit
	if limit <= 0 {
		limit = defaultRankLimit
	}
	if limit > len(rankings) {
		limit = len(rankings)
	}
	rankings = rankings[:limit]
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	c.JSON(http.StatusOK, models.RankResponse{Candles: len(candles), Rankings: rankings})
}

func parseSteps(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	steps := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("steps: %q is not a number", p)
		}
		steps = append(steps, v)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("steps: at least one price step is required")
	}
	return steps, nil
}
