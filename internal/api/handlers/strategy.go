package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"grid-backtest/internal/api/models"
)

// StrategyHandler handles strategy-related requests
type StrategyHandler struct{}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler() *StrategyHandler {
	return &StrategyHandler{}
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	strategies := []models.StrategyInfo{
		{
			Name:        "grid",
			Description: "Spot grid strategy. Keeps one limit buy below and one limit sell above the price, moving both one level each time an order fills.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "upper_price",
					Type:        "float",
					Description: "Highest grid level (quote currency)",
				},
				{
					Name:        "lower_price",
					Type:        "float",
					Description: "Lowest grid level; the grid covers lower_price..upper_price",
				},
				{
					Name:        "price_step",
					Type:        "float",
					Description: "Distance between two neighbouring levels",
				},
			},
		},
	}

	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}
