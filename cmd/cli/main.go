package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/backtest"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/logger"
	"grid-backtest/internal/strategy"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logger.Init()
	defer logger.Close()

	switch os.Args[1] {
	case "backtest":
		cmdBacktest(os.Args[2:], log)
	case "rank":
		cmdRank(os.Args[2:], log)
	case "grid":
		cmdGrid(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli backtest --config examples/config.yaml --out results/btc")
	fmt.Println("  cli rank --config examples/config.yaml --steps 100,250,500")
	fmt.Println("  cli grid --upper 47000 --lower 30000 --step 250 [--price 38000]")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - backtest writes trades.csv, equity.csv and candles.csv into --out")
	fmt.Println("  - rank runs one backtest per price step over the same candles, best return first")
	fmt.Println("  - EXCHANGE_* and CANDLE_CACHE_DIR from the environment or .env override the config")
}

func cmdBacktest(args []string, log zerolog.Logger) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	outDir := fs.String("out", "", "Output directory (default: output.dir from config)")
	envPath := fs.String("env", "", "Path to .env file (default: ./.env)")
	cacheDir := fs.String("cache-dir", "", "Optional: keep downloaded candle pages in this pebble directory")
	_ = fs.Parse(args)

	if *cfgPath == "" {
		fmt.Println("--config is required")
		os.Exit(2)
	}

	cfg := loadConfig(*cfgPath, *envPath)
	if *cacheDir != "" {
		cfg.Data.CacheDir = *cacheDir
	}
	if *outDir == "" {
		*outDir = cfg.Output.Dir
	}

	src, closeSource, err := openSource(cfg, log)
	if err != nil {
		panic(err)
	}
	defer closeSource()

	engine := backtest.New(log)
	res, err := engine.Run(context.Background(), runConfig(cfg, src))
	if err != nil {
		panic(err)
	}

	if err := backtest.WriteResultCSV(*outDir, res); err != nil {
		panic(err)
	}

	s := analysis.Summarize(res)
	fmt.Printf("Wrote %d trades, %d equity points, %d candles to %s\n", len(res.Trades), len(res.Equity), len(res.Candles), *outDir)
	fmt.Printf("%s %s %s .. %s (%d candles, %d price events)\n",
		s.Market, s.Timeframe, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), s.Candles, s.Events)
	fmt.Printf("Grid: %d levels, %d level crossings\n", len(res.Levels), s.LevelCrossings)
	fmt.Printf("Wallet: %v -> %v\n", res.InitialWallet, res.FinalWallet)
	fmt.Printf("Value: %.2f -> %.2f %s (return %.2f%%, buy & hold %.2f%%, max drawdown %.2f%%)\n",
		s.InitialValue, s.FinalValue, res.Market.Quote, s.ReturnPct, s.BuyAndHoldPct, s.MaxDrawdownPct)
	fmt.Printf("Fills=%d round trips=%d wins=%d realized PnL=%.2f\n", s.Fills, s.RoundTrips, s.Wins, s.RealizedPNL)
}

func cmdRank(args []string, log zerolog.Logger) {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	steps := fs.String("steps", "", "Comma-separated price steps (default: price_step from config)")
	envPath := fs.String("env", "", "Path to .env file (default: ./.env)")
	cacheDir := fs.String("cache-dir", "", "Optional: keep downloaded candle pages in this pebble directory")
	_ = fs.Parse(args)

	if *cfgPath == "" {
		fmt.Println("--config is required")
		os.Exit(2)
	}

	cfg := loadConfig(*cfgPath, *envPath)
	if *cacheDir != "" {
		cfg.Data.CacheDir = *cacheDir
	}
	src, closeSource, err := openSource(cfg, log)
	if err != nil {
		panic(err)
	}
	defer closeSource()

	base := runConfig(cfg, data.NewCachedSource(src, time.Hour))
	priceSteps := []float64{base.Grid.PriceStep}
	if *steps != "" {
		priceSteps = parseFloats(*steps)
	}

	engine := backtest.New(log)
	ranked := make([]analysis.RankedSummary, 0, len(priceSteps))
	for _, step := range priceSteps {
		rc := base
		rc.Grid.PriceStep = step
		res, err := engine.Run(context.Background(), rc)
		if err != nil {
			log.Warn().Err(err).Float64("price_step", step).Msg("skipping price step")
			continue
		}
		ranked = append(ranked, analysis.RankedSummary{
			Label:   strconv.FormatFloat(step, 'f', -1, 64),
			Summary: analysis.Summarize(res),
		})
	}

	ranked = analysis.RankByReturn(ranked)
	fmt.Printf("%-4s %-10s %-10s %-10s %-8s %-8s %-12s\n", "rank", "step", "return%", "maxdd%", "fills", "trips", "realized")
	for _, r := range ranked {
		fmt.Printf(
			"%-4d %-10s %-10.2f %-10.2f %-8d %-8d %-12.2f\n",
			r.Rank,
			r.Label,
			r.ReturnPct,
			r.MaxDrawdownPct,
			r.Fills,
			r.RoundTrips,
			r.RealizedPNL,
		)
	}
}

func cmdGrid(args []string) {
	fs := flag.NewFlagSet("grid", flag.ExitOnError)
	upper := fs.Float64("upper", 0, "Upper price")
	lower := fs.Float64("lower", 0, "Lower price")
	step := fs.Float64("step", 0, "Price step")
	price := fs.Float64("price", 0, "Optional: show where this price sits in the grid")
	_ = fs.Parse(args)

	g, err := strategy.NewGrid(*upper, *lower, *step)
	if err != nil {
		panic(err)
	}

	fmt.Printf("%d levels from %g to %g step %g\n", g.Len(), g.Upper(), g.Lower(), g.Step())
	for i, lvl := range g.Levels() {
		fmt.Printf("%4d %g\n", i, lvl)
	}
	if *price > 0 {
		fmt.Printf("price %g: index %d, %d levels at or below, %d at or above\n",
			*price, g.IndexOf(*price), g.CountBelowOrEqual(*price), g.CountAboveOrEqual(*price))
		if below, err := g.LevelAtOrBelow(*price); err == nil {
			fmt.Printf("  level at or below: %g\n", below)
		}
		if above, err := g.LevelAtOrAbove(*price); err == nil {
			fmt.Printf("  level at or above: %g\n", above)
		}
	}
}

func loadConfig(cfgPath, envPath string) *config.Config {
	cfg, err := config.LoadUnchecked(cfgPath)
	if err != nil {
		panic(err)
	}
	cfg.ApplyEnv(envPath)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// openSource builds the candle source for cfg. Exchange pages are kept in a
// pebble store when data.cache_dir is set.
func openSource(cfg *config.Config, log zerolog.Logger) (data.Source, func(), error) {
	noop := func() {}
	switch cfg.Data.Source {
	case config.SourceFile:
		src, err := data.OpenFileSource(cfg.Data.Path, cfg.Data.PageLimit)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case config.SourceExchange:
		client := data.NewExchangeClient(cfg.Data.APIKey, cfg.Data.BaseURL, log)
		if cfg.Data.PageLimit > 0 {
			client.PageLimit = cfg.Data.PageLimit
		}
		if cfg.Data.CacheDir == "" {
			return client, noop, nil
		}
		store, err := data.NewPebbleStore(cfg.Data.CacheDir)
		if err != nil {
			return nil, noop, err
		}
		return data.NewStoredSource(client, store, log), func() { _ = store.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported data.source: %q", cfg.Data.Source)
	}
}

func runConfig(cfg *config.Config, src data.Source) backtest.RunConfig {
	start, end, err := cfg.Range()
	if err != nil {
		panic(err)
	}
	grid, err := cfg.GridParams()
	if err != nil {
		panic(err)
	}
	return backtest.RunConfig{
		Market:    cfg.MarketValue(),
		Timeframe: cfg.Timeframe,
		Start:     start,
		End:       end,
		Wallet:    cfg.Wallet,
		Grid:      grid,
		Source:    src,
	}
}

func parseFloats(s string) []float64 {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			panic(fmt.Errorf("invalid number %q: %w", p, err))
		}
		out = append(out, v)
	}
	return out
}
