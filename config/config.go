package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"zone-scanner-bot/internal/cache"
	"zone-scanner-bot/internal/database"
	"zone-scanner-bot/internal/feed"
	"zone-scanner-bot/internal/scanner"
	"zone-scanner-bot/internal/zones"
)

// Config aggregates all application configuration. It is loaded from a JSON
// file with environment-variable overrides for deployment secrets.
type Config struct {
	Watchlist       []string `json:"watchlist"`
	Timeframe       string   `json:"timeframe"`         // candle interval, e.g. "1h"
	Lookback        int      `json:"lookback"`          // candles fetched per detection pass
	PollIntervalSec int      `json:"poll_interval_sec"` // seconds between candle polls

	Detection zones.DetectionParams `json:"detection"`
	Scoring   zones.ScoreParams     `json:"scoring"`
	Lifecycle zones.LifecycleParams `json:"lifecycle"`
	Scanner   ScannerConfig         `json:"scanner"`
	Database  database.Config       `json:"database"`
	Redis     RedisConfig           `json:"redis"`
	Binance   BinanceConfig         `json:"binance"`
	Logging   LoggingConfig         `json:"logging"`
}

// ScannerConfig holds scanner settings with durations in seconds
type ScannerConfig struct {
	Enabled         bool    `json:"enabled"`
	ScanIntervalSec int     `json:"scan_interval_sec"`
	WorkerCount     int     `json:"worker_count"`
	Direction       string  `json:"direction"` // DEMAND, SUPPLY or "" for both
	MaxDistancePct  float64 `json:"max_distance_pct"`
	MinStrength     float64 `json:"min_strength"`
	MinRating       float64 `json:"min_rating"`
	AllPerSymbol    bool    `json:"all_per_symbol"`
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	PoolSize   int    `json:"pool_size"`
	ScanTTLSec int    `json:"scan_ttl_sec"`
}

// BinanceConfig holds market-data endpoints
type BinanceConfig struct {
	BaseURL       string `json:"base_url"`
	StreamURL     string `json:"stream_url"`
	TimeoutSec    int    `json:"timeout_sec"`
	MaxRetrySec   int    `json:"max_retry_sec"`
	StaleAfterSec int    `json:"stale_after_sec"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON vs console output
}

// LoadConfig reads configuration from the given JSON file, then applies
// environment overrides. A missing file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	// .env is optional, useful for local runs
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Watchlist:       []string{"BTCUSDT", "ETHUSDT"},
		Timeframe:       "1h",
		Lookback:        200,
		PollIntervalSec: 60,
		Detection:       zones.DefaultDetectionParams(),
		Scoring:         zones.DefaultScoreParams(),
		Lifecycle:       zones.DefaultLifecycleParams(),
		Scanner: ScannerConfig{
			Enabled:         true,
			ScanIntervalSec: 300,
			WorkerCount:     4,
			Direction:       "",
			MaxDistancePct:  5.0,
			MinStrength:     50,
			MinRating:       40,
		},
		Database: database.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "zones",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Address:    "localhost:6379",
			ScanTTLSec: 900,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Database.Host = getEnv("DATABASE_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DATABASE_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DATABASE_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DATABASE_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DATABASE_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DATABASE_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Address = getEnv("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Binance.BaseURL = getEnv("BINANCE_BASE_URL", cfg.Binance.BaseURL)
	cfg.Binance.StreamURL = getEnv("BINANCE_STREAM_URL", cfg.Binance.StreamURL)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
}

// Validate fails fast on invalid configuration, before anything runs
func (c *Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.Lifecycle.Validate(); err != nil {
		return err
	}
	if err := c.ScannerConfig().Filters.Validate(); err != nil {
		return err
	}
	if c.Lookback < c.Detection.ConsolidationWindow+c.Detection.ImpulseWindow {
		return fmt.Errorf("lookback %d is shorter than consolidation_window + impulse_window", c.Lookback)
	}
	return nil
}

// ScannerConfig converts to the scanner package's configuration
func (c *Config) ScannerConfig() scanner.Config {
	return scanner.Config{
		Enabled:      c.Scanner.Enabled,
		ScanInterval: time.Duration(c.Scanner.ScanIntervalSec) * time.Second,
		WorkerCount:  c.Scanner.WorkerCount,
		Direction:    zones.ZoneType(c.Scanner.Direction),
		Filters: scanner.ScanFilters{
			MaxDistancePercent: c.Scanner.MaxDistancePct,
			MinStrength:        c.Scanner.MinStrength,
			MinRating:          c.Scanner.MinRating,
			AllPerSymbol:       c.Scanner.AllPerSymbol,
		},
	}
}

// CacheConfig converts to the cache package's configuration
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Enabled:  c.Redis.Enabled,
		Address:  c.Redis.Address,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		PoolSize: c.Redis.PoolSize,
		ScanTTL:  time.Duration(c.Redis.ScanTTLSec) * time.Second,
	}
}

// FeedConfig converts to the feed package's configuration
func (c *Config) FeedConfig() feed.BinanceConfig {
	return feed.BinanceConfig{
		BaseURL:    c.Binance.BaseURL,
		StreamURL:  c.Binance.StreamURL,
		Timeout:    time.Duration(c.Binance.TimeoutSec) * time.Second,
		MaxRetry:   time.Duration(c.Binance.MaxRetrySec) * time.Second,
		StaleAfter: time.Duration(c.Binance.StaleAfterSec) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
