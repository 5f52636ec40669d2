package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"grid-backtest/internal/api/models"
	"grid-backtest/internal/data"
	"grid-backtest/internal/model"
)

// ListTimeframes handles GET /api/v1/timeframes
func ListTimeframes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"timeframes": model.Timeframes})
}

// ListCandleFiles handles GET /api/v1/candles
// Lists the candle files written by fetch-candles. An optional market query
// parameter (e.g. BTC/USD) filters the list.
func ListCandleFiles(c *gin.Context) {
	var filter string
	if q := c.Query("market"); q != "" {
		m, err := model.ParseMarket(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "INVALID_PARAM",
					Message: err.Error(),
				},
			})
			return
		}
		filter = m.Symbol()
	}

	files, err := loadCandleFiles(data.CandleDataDir(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "CANDLES_LOAD_ERROR",
				Message: fmt.Sprintf("Failed to list candle files: %v", err),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"count": len(files),
	})
}

// loadCandleFiles reads the header of every candle file in dir. A missing
// directory is an empty list, not an error.
func loadCandleFiles(dir, market string) ([]models.CandleFileInfo, error) {
	files := []models.CandleFileInfo{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return files, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		f, err := data.LoadCandleFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if market != "" && f.Market != market {
			continue
		}
		files = append(files, models.CandleFileInfo{
			File:      entry.Name(),
			Market:    f.Market,
			Timeframe: f.Timeframe,
			Candles:   len(f.Rows),
			UpdatedAt: f.UpdatedAt,
		})
	}
	return files, nil
}
