package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"grid-backtest/internal/api/models"
	"grid-backtest/internal/data"
	"grid-backtest/internal/model"
)

func TestListWallets(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"small.yaml":   "name: Small\nwallet:\n  USD: 500\n",
		"default.yaml": "wallet:\n  USD: 1000\n  BTC: 0.1\n",
		"broken.yaml":  "wallet: [",
		"notes.txt":    "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWalletHandler(dir, zerolog.Nop())
	r.GET("/api/v1/wallets", h.ListWallets)

	w := do(t, r, http.MethodGet, "/api/v1/wallets", nil)
	got := decode[struct {
		Wallets []models.WalletInfo `json:"wallets"`
	}](t, w).Wallets
	if len(got) != 2 {
		t.Fatalf("want 2 wallets, got %+v", got)
	}
	if got[0].ID != "default" || got[0].Name != "default" || got[0].Balances["BTC"] != 0.1 {
		t.Errorf("default: got %+v", got[0])
	}
	if got[1].ID != "small" || got[1].Name != "Small" {
		t.Errorf("small: got %+v", got[1])
	}

	missing := NewWalletHandler(filepath.Join(dir, "nope"), zerolog.Nop())
	r.GET("/missing", missing.ListWallets)
	w = do(t, r, http.MethodGet, "/missing", nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"wallets":[]}` {
		t.Errorf("missing dir: got %d %s", w.Code, w.Body.String())
	}
}

func TestListCandleFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CANDLE_DATA_DIR", dir)

	btc := model.NewSpotMarket("BTC", "USD")
	eth := model.NewSpotMarket("ETH", "USD")
	candles := []model.Candle{{Time: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 1, Close: 2}}
	for _, m := range []model.Market{btc, eth} {
		f := data.NewCandleFile(m, "1h", "2022-01-02T00:00:00Z", candles)
		if err := data.SaveCandleFile(f, data.DefaultCandlesPath(m, "1h")); err != nil {
			t.Fatal(err)
		}
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/candles", ListCandleFiles)
	r.GET("/api/v1/timeframes", ListTimeframes)

	type listing struct {
		Files []models.CandleFileInfo `json:"files"`
		Count int                     `json:"count"`
	}
	if got := decode[listing](t, do(t, r, http.MethodGet, "/api/v1/candles", nil)); got.Count != 2 {
		t.Errorf("want 2 files, got %+v", got)
	}
	got := decode[listing](t, do(t, r, http.MethodGet, "/api/v1/candles?market=ETH/USD", nil))
	if got.Count != 1 || got.Files[0].Market != "ETH/USD" || got.Files[0].File != "ETH-USD_1h.json" || got.Files[0].Candles != 1 {
		t.Errorf("filtered: got %+v", got)
	}
	if w := do(t, r, http.MethodGet, "/api/v1/candles?market=ETH/", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad market: got %d", w.Code)
	}

	tf := decode[struct {
		Timeframes []string `json:"timeframes"`
	}](t, do(t, r, http.MethodGet, "/api/v1/timeframes", nil))
	if len(tf.Timeframes) != len(model.Timeframes) {
		t.Errorf("timeframes: got %v", tf.Timeframes)
	}
}

func TestListStrategies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/strategies", NewStrategyHandler().ListStrategies)

	got := decode[struct {
		Strategies []models.StrategyInfo `json:"strategies"`
	}](t, do(t, r, http.MethodGet, "/api/v1/strategies", nil)).Strategies
	if len(got) != 1 || got[0].Name != "grid" || len(got[0].Parameters) != 3 {
		t.Errorf("got %+v", got)
	}
}
