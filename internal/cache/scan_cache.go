// Package cache provides Redis-based caching for scan results so other
// processes (dashboards, notifiers) can read the latest ranking without
// touching the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"zone-scanner-bot/internal/scanner"
)

const (
	keyLatestScan = "zones:scan:latest"

	defaultScanTTL = 15 * time.Minute
)

// Config holds Redis configuration
type Config struct {
	Enabled  bool          `json:"enabled"`
	Address  string        `json:"address"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	PoolSize int           `json:"pool_size"`
	ScanTTL  time.Duration `json:"scan_ttl"`
}

// ScanCache stores scan summaries in Redis with graceful degradation.
// When Redis is unavailable the cache reports errors and callers fall back
// to the scanner's in-memory last result.
type ScanCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  zerolog.Logger
	mu      sync.RWMutex
	healthy bool
}

// NewScanCache connects to Redis and verifies connectivity. A failed initial
// ping returns the cache in degraded mode rather than an error.
func NewScanCache(cfg Config, logger zerolog.Logger) (*ScanCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ttl := cfg.ScanTTL
	if ttl <= 0 {
		ttl = defaultScanTTL
	}
	sc := &ScanCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "scan_cache").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		sc.logger.Warn().Err(err).Msg("initial redis connection failed, cache degraded")
		return sc, nil
	}

	sc.healthy = true
	sc.logger.Info().Str("address", cfg.Address).Msg("redis connected")
	return sc, nil
}

// IsHealthy reports whether Redis responded to the last operation
func (sc *ScanCache) IsHealthy() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.healthy
}

// StoreScan caches the latest scan summary with TTL
func (sc *ScanCache) StoreScan(ctx context.Context, summary *scanner.ScanSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal scan summary: %w", err)
	}
	if err := sc.client.Set(ctx, keyLatestScan, data, sc.ttl).Err(); err != nil {
		sc.setHealthy(false)
		return fmt.Errorf("failed to cache scan summary: %w", err)
	}
	sc.setHealthy(true)
	return nil
}

// GetLatestScan returns the cached scan summary, or nil when absent
func (sc *ScanCache) GetLatestScan(ctx context.Context) (*scanner.ScanSummary, error) {
	data, err := sc.client.Get(ctx, keyLatestScan).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		sc.setHealthy(false)
		return nil, fmt.Errorf("failed to read cached scan: %w", err)
	}
	sc.setHealthy(true)

	var summary scanner.ScanSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached scan: %w", err)
	}
	return &summary, nil
}

// Close releases the Redis connection
func (sc *ScanCache) Close() error {
	return sc.client.Close()
}

func (sc *ScanCache) setHealthy(healthy bool) {
	sc.mu.Lock()
	sc.healthy = healthy
	sc.mu.Unlock()
}
