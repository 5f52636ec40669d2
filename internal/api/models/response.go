package models

import (
	"time"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/backtest"
)

// BacktestResponse represents the response from a backtest run
type BacktestResponse struct {
	ID      string                 `json:"id,omitempty"`
	Status  string                 `json:"status"`
	Summary analysis.Summary       `json:"summary"`
	Levels  []float64              `json:"levels"`
	Wallet  WalletChange           `json:"wallet"`
	Trades  []backtest.TradeRow    `json:"trades,omitempty"`
	Equity  []backtest.EquityPoint `json:"equity,omitempty"`
}

// WalletChange shows balances before and after the run
type WalletChange struct {
	Initial map[string]float64 `json:"initial"`
	Final   map[string]float64 `json:"final"`
}

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CompareBacktestResponse represents the response from a comparison
type CompareBacktestResponse struct {
	Window     TimeWindow         `json:"window"`
	Comparison []ComparisonResult `json:"comparison"`
	Skipped    []SkippedVariation `json:"skipped,omitempty"`
}

// ComparisonResult contains results for one variation, best return first
type ComparisonResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
	// Summary of the variation's run
	Summary analysis.Summary `json:"summary"`
}

// SkippedVariation names a variation that could not run
type SkippedVariation struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RankResponse represents the response from ranking grid steps
type RankResponse struct {
	Candles  int       `json:"candles"`
	Rankings []Ranking `json:"rankings"`
}

// Ranking represents one ranked price step
type Ranking struct {
	Rank           int     `json:"rank"`
	PriceStep      float64 `json:"price_step"`
	Levels         int     `json:"levels"`
	LevelCrossings int     `json:"level_crossings"`
	// EstimatedGross is quote earned per unit of base if every two
	// crossings completed one round trip.
	EstimatedGross float64 `json:"estimated_gross"`
}

// WalletInfo represents information about a wallet preset
type WalletInfo struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	File     string             `json:"file"`
	Balances map[string]float64 `json:"balances"`
}

// StrategyInfo represents information about a strategy
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "string"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// CandleFileInfo describes a candle file available for offline backtests
type CandleFileInfo struct {
	File      string `json:"file"`
	Market    string `json:"market"`
	Timeframe string `json:"timeframe"`
	Candles   int    `json:"candles"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
