package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/logger"
	"grid-backtest/internal/model"
)

func main() {
	var (
		market     = flag.String("market", "BTC/USD", "Market as BASE/QUOTE")
		timeframe  = flag.String("timeframe", config.DefaultTimeframe, "Candle timeframe")
		start      = flag.String("start", "", "First candle, YYYY-MM-DD or RFC 3339 (default: 30 days ago)")
		end        = flag.String("end", "", "Last candle (default: now)")
		outputPath = flag.String("output", "", "Output file path (default: ./data/<BASE>-<QUOTE>_<tf>.json)")
		seedFile   = flag.String("seed", "", "Path to existing candle file to extend (default: the output file)")
		envPath    = flag.String("env", "", "Path to .env file (default: ./.env)")
	)
	flag.Parse()

	var cfg config.Config
	cfg.ApplyEnv(*envPath)
	log := logger.Init()
	defer logger.Close()

	m, err := model.ParseMarket(*market)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid market")
	}
	if _, err := model.ParseTimeframe(*timeframe); err != nil {
		log.Fatal().Err(err).Msg("Invalid timeframe")
	}
	endTime := time.Now().UTC()
	if *end != "" {
		if endTime, err = config.ParseDate(*end); err != nil {
			log.Fatal().Err(err).Msg("Invalid end")
		}
	}
	startTime := endTime.AddDate(0, 0, -30)
	if *start != "" {
		if startTime, err = config.ParseDate(*start); err != nil {
			log.Fatal().Err(err).Msg("Invalid start")
		}
	}
	if *outputPath == "" {
		*outputPath = data.DefaultCandlesPath(m, *timeframe)
	}
	if *seedFile == "" {
		*seedFile = *outputPath
	}

	fmt.Printf("Fetching %s %s candles from %s to %s\n", m, *timeframe,
		startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))

	// Load existing candles as seed so only the missing tail is downloaded
	series := backtest.NewSeries()
	if f, err := data.LoadCandleFile(*seedFile); err == nil {
		if f.Market != m.Symbol() || f.Timeframe != *timeframe {
			log.Fatal().
				Str("seed", *seedFile).
				Str("market", f.Market).
				Str("timeframe", f.Timeframe).
				Msg("Seed file holds a different market or timeframe")
		}
		candles, err := f.Decode()
		if err != nil {
			log.Fatal().Err(err).Str("seed", *seedFile).Msg("Failed to decode seed file")
		}
		for _, c := range candles {
			series.Put(c)
		}
		fmt.Printf("Loaded %d existing candles from %s\n", series.Len(), *seedFile)
	}

	since := startTime
	// The last stored candle may have been incomplete when it was saved
	if last, ok := series.Last(); ok && !last.Time.Before(startTime) {
		if first, _ := series.First(); !first.Time.After(startTime) {
			since = last.Time
		}
	}

	client := data.NewExchangeClient(cfg.Data.APIKey, cfg.Data.BaseURL, log)
	if cfg.Data.PageLimit > 0 {
		client.PageLimit = cfg.Data.PageLimit
	}
	sim := backtest.NewSimulator(backtest.SimulatorConfig{
		Market:    m,
		Timeframe: *timeframe,
		Start:     since,
		End:       endTime,
	}, client, nil, log)

	added := 0
	switch err := sim.Load(context.Background()); {
	case errors.Is(err, backtest.ErrNoCandles):
		fmt.Println("No new candles")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to fetch candles")
	default:
		before := series.Len()
		for _, c := range sim.Candles() {
			series.Put(c)
		}
		added = series.Len() - before
	}

	f := data.NewCandleFile(m, *timeframe, time.Now().UTC().Format(time.RFC3339), series.Candles())
	if err := data.SaveCandleFile(f, *outputPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to save candles")
	}

	fmt.Printf("Saved %d candles (%d new) to %s\n", len(f.Rows), added, *outputPath)
	if len(f.Rows) == 0 {
		os.Exit(1)
	}
}
