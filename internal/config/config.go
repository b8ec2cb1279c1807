package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr          string
	Store         string
	SQLitePath    string
	DatabaseURL   string
	SaveFile      string
	PlayerID      string
	IncomeEvery   time.Duration
	MarketEvery   time.Duration
	AutosaveEvery time.Duration
	TapRate       float64
}

type CLIConfig struct {
	APIBaseURL string
	QueuePath  string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TYCOON_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:          addr,
		Store:         strings.ToLower(envDefault("TYCOON_STORE", "sqlite")),
		SQLitePath:    envDefault("TYCOON_SQLITE_PATH", filepath.Join(dataDir(), "tycoon.sqlite")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SaveFile:      envDefault("TYCOON_SAVE_FILE", filepath.Join(dataDir(), "save.json.zst")),
		PlayerID:      envDefault("TYCOON_PLAYER_ID", "local"),
		IncomeEvery:   envDurationDefault("TYCOON_INCOME_TICK_EVERY", time.Second),
		MarketEvery:   envDurationDefault("TYCOON_MARKET_TICK_EVERY", 5*time.Second),
		AutosaveEvery: envDurationDefault("TYCOON_AUTOSAVE_EVERY", 300*time.Second),
		TapRate:       envFloatDefault("TYCOON_TAP_RATE", 20),
	}

	switch cfg.Store {
	case "sqlite", "file", "memory":
	case "postgres", "remote":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for the %s store", cfg.Store)
		}
	default:
		return cfg, fmt.Errorf("TYCOON_STORE must be one of sqlite, postgres, remote, file, memory (got %q)", cfg.Store)
	}
	if cfg.IncomeEvery <= 0 || cfg.MarketEvery <= 0 || cfg.AutosaveEvery <= 0 {
		return cfg, fmt.Errorf("tick intervals must be positive")
	}
	if cfg.TapRate <= 0 {
		return cfg, fmt.Errorf("TYCOON_TAP_RATE must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("TYC_API_BASE_URL", "http://localhost:8080"), "/"),
		QueuePath:  envDefault("TYC_QUEUE_PATH", filepath.Join(cliDir(), "queue.json")),
	}
}

func dataDir() string {
	if v := strings.TrimSpace(os.Getenv("TYCOON_DATA_DIR")); v != "" {
		return v
	}
	return "data"
}

func cliDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tyc"
	}
	return filepath.Join(home, ".tyc")
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
