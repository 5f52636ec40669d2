package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"grid-backtest/internal/api/handlers"
	"grid-backtest/internal/api/middleware"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/logger"
)

func main() {
	// Exchange settings come from the environment or .env
	var cfg config.Config
	cfg.ApplyEnv(os.Getenv("ENV_FILE"))

	log := logger.Init()
	defer logger.Close()

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	cacheTTL := 15 * time.Minute
	if v := os.Getenv("CANDLE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatal().Err(err).Str("value", v).Msg("Invalid CANDLE_CACHE_TTL")
		}
		cacheTTL = d
	}

	client := data.NewExchangeClient(cfg.Data.APIKey, cfg.Data.BaseURL, log)
	if cfg.Data.PageLimit > 0 {
		client.PageLimit = cfg.Data.PageLimit
	}
	var exchange data.Source = client
	if cfg.Data.CacheDir != "" {
		store, err := data.NewPebbleStore(cfg.Data.CacheDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.Data.CacheDir).Msg("Failed to open candle store")
		}
		defer store.Close()
		exchange = data.NewStoredSource(client, store, log)
		log.Info().Str("dir", cfg.Data.CacheDir).Msg("Candle pages are persisted")
	}
	cached := data.NewCachedSource(exchange, cacheTTL)
	go func() {
		for range time.Tick(cacheTTL) {
			if n := cached.Prune(); n > 0 {
				log.Debug().Int("pruned", n).Msg("Pruned candle cache")
			}
		}
	}()

	// Set up Gin router
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply middleware
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	// Initialize handlers
	results := handlers.NewResultStore(handlers.DefaultMaxResults)
	walletHandler := handlers.NewWalletHandler(handlers.WalletDir(), log)
	backtestHandler := handlers.NewBacktestHandler(cached, walletHandler.GetWalletDir(), results, log)
	strategyHandler := handlers.NewStrategyHandler()
	rankHandler := handlers.NewRankHandler(cached, log)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		hits, misses := cached.Stats()
		c.JSON(200, gin.H{
			"status":       "ok",
			"exchange":     client.BaseURL,
			"results":      results.Len(),
			"cache_hits":   hits,
			"cache_misses": misses,
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/backtest", backtestHandler.RunBacktest)
		api.POST("/backtest/compare", backtestHandler.CompareBacktests)
		api.GET("/backtest/:id", backtestHandler.GetBacktest)
		api.GET("/backtest/:id/trades", backtestHandler.GetTrades)
		api.GET("/backtest/:id/equity", backtestHandler.GetEquity)
		api.GET("/backtest/:id/candles", backtestHandler.GetCandles)

		api.GET("/wallets", walletHandler.ListWallets)
		api.GET("/strategies", strategyHandler.ListStrategies)

		api.GET("/rank", rankHandler.RankSteps)

		api.GET("/timeframes", handlers.ListTimeframes)
		api.GET("/candles", handlers.ListCandleFiles)
	}

	// Serve static files from web/dist (if it exists)
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); err == nil {
		router.Static("/assets", staticDir+"/assets")
		router.StaticFile("/favicon.ico", staticDir+"/favicon.ico")

		// Serve index.html for all non-API routes (SPA routing)
		router.NoRoute(func(c *gin.Context) {
			path := c.Request.URL.Path
			if len(path) >= 4 && path[:4] == "/api" {
				c.JSON(404, gin.H{"error": "Not found"})
			} else {
				c.File(staticDir + "/index.html")
			}
		})
		log.Info().Str("dir", staticDir).Msg("Serving static files")
	} else {
		log.Info().Str("dir", staticDir).Msg("Static directory not found, skipping static file serving")
	}

	// Start server
	addr := fmt.Sprintf(":%s", port)
	log.Info().Str("addr", addr).Msg("Starting API server")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
