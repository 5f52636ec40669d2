package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ApplyEnv loads envPath (or ./.env when empty) if it exists and overlays
// environment variables onto c.
// Priority: ENV > .env file > config file
func (c *Config) ApplyEnv(envPath string) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		c.Data.BaseURL = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Data.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_PAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Data.PageLimit = n
		}
	}
	if v := os.Getenv("CANDLE_CACHE_DIR"); v != "" {
		c.Data.CacheDir = v
	}
	if v := os.Getenv("BACKTEST_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
}
