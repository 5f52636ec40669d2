package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"grid-backtest/internal/api/models"
)

// WalletDir is where wallet presets live: WALLET_DIR, or examples/wallets
// under the working directory.
func WalletDir() string {
	dir := os.Getenv("WALLET_DIR")
	if dir == "" {
		wd, err := os.Getwd()
		if err == nil {
			dir = filepath.Join(wd, "examples", "wallets")
		} else {
			dir = "./examples/wallets"
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir
}

// WalletHandler handles wallet preset requests
type WalletHandler struct {
	walletDir string
	log       zerolog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletDir string, log zerolog.Logger) *WalletHandler {
	h := &WalletHandler{
		walletDir: walletDir,
		log:       log.With().Str("handler", "wallet").Logger(),
	}
	h.log.Info().Str("dir", walletDir).Msg("Using wallet directory")
	return h
}

// GetWalletDir returns the wallet directory path (for debugging)
func (h *WalletHandler) GetWalletDir() string {
	return h.walletDir
}

// ListWallets handles GET /api/v1/wallets
func (h *WalletHandler) ListWallets(c *gin.Context) {
	wallets := []models.WalletInfo{}

	entries, err := os.ReadDir(h.walletDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.walletDir).Msg("Failed to read wallet directory")
		c.JSON(http.StatusOK, gin.H{"wallets": wallets})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.walletDir, entry.Name())
		info, err := loadWalletInfo(path, entry.Name())
		if err != nil {
			h.log.Warn().Err(err).Str("file", path).Msg("Skipping invalid wallet file")
			continue
		}
		wallets = append(wallets, *info)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].ID < wallets[j].ID })

	h.log.Debug().Int("count", len(wallets)).Msg("Listed wallets")
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

func loadWalletInfo(path, filename string) (*models.WalletInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Name   string             `yaml:"name"`
		Wallet map[string]float64 `yaml:"wallet"`
	}
	if err := yaml.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}

	// "default.yaml" -> "default", which is also what wallet_file takes
	id := strings.TrimSuffix(filename, ".yaml")
	name := wrapper.Name
	if name == "" {
		name = id
	}

	return &models.WalletInfo{
		ID:       id,
		Name:     name,
		File:     path,
		Balances: wrapper.Wallet,
	}, nil
}
