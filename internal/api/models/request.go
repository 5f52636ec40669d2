package models

// BacktestRequest represents the request body for running a backtest
type BacktestRequest struct {
	DataSource DataSourceConfig `json:"data_source" binding:"required"`
	Config     BacktestConfig   `json:"config" binding:"required"`
	Options    BacktestOptions  `json:"options,omitempty"`
}

// DataSourceConfig defines where candles come from
type DataSourceConfig struct {
	// Type is "exchange" or "inline"
	Type      string `json:"type" binding:"required"`
	Market    string `json:"market" binding:"required"`
	Timeframe string `json:"timeframe,omitempty"` // default: 1h

	// Dates are YYYY-MM-DD or RFC 3339
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`

	// Candles holds [ts_ms, open, high, low, close, volume] rows for type "inline".
	Candles [][]float64 `json:"candles,omitempty"`
}

// BacktestConfig contains wallet and strategy configuration
type BacktestConfig struct {
	WalletFile string             `json:"wallet_file,omitempty"`
	Wallet     map[string]float64 `json:"wallet,omitempty"`
	Strategy   StrategyConfig     `json:"strategy" binding:"required"`
}

// StrategyConfig defines strategy and its parameters
type StrategyConfig struct {
	Name   string                 `json:"name" binding:"required"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// BacktestOptions contains optional backtest parameters
type BacktestOptions struct {
	IncludeTrades bool `json:"include_trades,omitempty"` // default: false
	IncludeEquity bool `json:"include_equity,omitempty"` // default: false
}

// CompareBacktestRequest represents a request to compare multiple backtests
type CompareBacktestRequest struct {
	DataSource DataSourceConfig    `json:"data_source" binding:"required"`
	BaseConfig BacktestConfig      `json:"base_config" binding:"required"`
	Variations []BacktestVariation `json:"variations" binding:"required"`
}

// BacktestVariation defines a variation to test
type BacktestVariation struct {
	Name   string         `json:"name" binding:"required"`
	Config BacktestConfig `json:"config"`
}

// RankRequest represents a request to rank grid price steps by level crossings
type RankRequest struct {
	Market     string  `form:"market" binding:"required"`
	Timeframe  string  `form:"timeframe,omitempty"`
	StartDate  string  `form:"start_date" binding:"required"`
	EndDate    string  `form:"end_date" binding:"required"`
	UpperPrice float64 `form:"upper_price" binding:"required"`
	LowerPrice float64 `form:"lower_price" binding:"required"`
	Steps      string  `form:"steps" binding:"required"` // comma-separated price steps
	Limit      int     `form:"limit,omitempty"`          // default: 10
}
