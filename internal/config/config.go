package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"grid-backtest/internal/model"
	"grid-backtest/internal/strategy"
)

const (
	SourceExchange = "exchange"
	SourceFile     = "file"

	DefaultTimeframe = "1h"
	DefaultOutputDir = "results"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Market    string `yaml:"market"`
	Timeframe string `yaml:"timeframe"`
	Start     string `yaml:"start"` // YYYY-MM-DD or RFC 3339
	End       string `yaml:"end"`

	// Optional: load starting balances from a separate YAML (e.g. examples/wallets/*.yaml).
	// If both WalletFile and Wallet are provided, Wallet overrides WalletFile per asset.
	WalletFile string             `yaml:"wallet_file"`
	Wallet     map[string]float64 `yaml:"wallet"`

	Strategy StrategyConfig `yaml:"strategy"`
	Data     DataConfig     `yaml:"data"`
	Output   OutputConfig   `yaml:"output"`
}

type StrategyConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

type DataConfig struct {
	// Source is "exchange" (default) or "file".
	Source    string `yaml:"source"`
	Path      string `yaml:"path"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	PageLimit int    `yaml:"page_limit"`
	// CacheDir enables the on-disk page cache when set.
	CacheDir string `yaml:"cache_dir"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.WalletFile != "" {
		walletPath := c.WalletFile
		if !filepath.IsAbs(walletPath) {
			// Prefer interpreting relative paths as relative to the config file directory,
			// but fall back to the provided path (relative to cwd) if that doesn't exist.
			cand := filepath.Join(filepath.Dir(path), walletPath)
			if _, err := os.Stat(cand); err == nil {
				walletPath = cand
			}
		}
		loaded, err := loadWalletFile(walletPath)
		if err != nil {
			return nil, err
		}
		c.Wallet = MergeWallet(loaded, c.Wallet)
	}
	// data.path is relative to the config file as well
	if c.Data.Path != "" && !filepath.IsAbs(c.Data.Path) {
		cand := filepath.Join(filepath.Dir(path), c.Data.Path)
		if _, err := os.Stat(cand); err == nil {
			c.Data.Path = cand
		}
	}
	return &c, nil
}

// ApplyDefaults fills fields that may be left out of a config file.
func (c *Config) ApplyDefaults() {
	if c.Timeframe == "" {
		c.Timeframe = DefaultTimeframe
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "grid"
	}
	if c.Data.Source == "" {
		c.Data.Source = SourceExchange
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := model.ParseMarket(c.Market); err != nil {
		return fmt.Errorf("market invalid: %w", err)
	}
	if _, err := model.ParseTimeframe(c.Timeframe); err != nil {
		return fmt.Errorf("timeframe invalid: %w", err)
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}
	if len(c.Wallet) == 0 {
		return errors.New("wallet is required")
	}
	for asset, bal := range c.Wallet {
		if bal < 0 {
			return fmt.Errorf("wallet.%s must be >= 0", asset)
		}
	}
	if c.Strategy.Name != "grid" {
		return fmt.Errorf("unsupported strategy: %q", c.Strategy.Name)
	}
	// Validate grid params by constructing a grid.
	p, err := c.GridParams()
	if err != nil {
		return err
	}
	if _, err := strategy.NewGrid(p.UpperPrice, p.LowerPrice, p.PriceStep); err != nil {
		return fmt.Errorf("grid config invalid: %w", err)
	}
	switch c.Data.Source {
	case SourceExchange:
	case SourceFile:
		if c.Data.Path == "" {
			return errors.New("data.path is required for file source")
		}
	default:
		return fmt.Errorf("unsupported data.source: %q", c.Data.Source)
	}
	if c.Data.PageLimit < 0 {
		return errors.New("data.page_limit must be >= 0")
	}
	return nil
}

// MarketValue returns the parsed market; call after Validate.
func (c *Config) MarketValue() model.Market {
	m, _ := model.ParseMarket(c.Market)
	return m
}

// Range parses start and end. End must not be before start.
func (c *Config) Range() (start, end time.Time, err error) {
	start, err = ParseDate(c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start invalid: %w", err)
	}
	end, err = ParseDate(c.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end invalid: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end must not be before start")
	}
	return start, end, nil
}

// GridParams reads upper_price, lower_price and price_step from strategy.params.
func (c *Config) GridParams() (strategy.GridParams, error) {
	p := strategy.GridParams{}
	var err error
	if p.UpperPrice, err = requireNum(c.Strategy.Params, "upper_price"); err != nil {
		return p, err
	}
	if p.LowerPrice, err = requireNum(c.Strategy.Params, "lower_price"); err != nil {
		return p, err
	}
	if p.PriceStep, err = requireNum(c.Strategy.Params, "price_step"); err != nil {
		return p, err
	}
	return p, nil
}

// ParseDate accepts YYYY-MM-DD (UTC midnight) or RFC 3339.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

func requireNum(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("strategy.params.%s is required", key)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("strategy.params.%s: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("strategy.params.%s must be a number, got %T", key, v)
}

type walletFileWrapper struct {
	Wallet map[string]float64 `yaml:"wallet"`
}

func loadWalletFile(path string) (map[string]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w walletFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return w.Wallet, nil
}

// MergeWallet overlays balances from override onto base.
// This is used when loading a wallet file and then applying overrides from the request.
func MergeWallet(base, override map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(override))
	for asset, bal := range base {
		out[asset] = bal
	}
	for asset, bal := range override {
		out[asset] = bal
	}
	return out
}
