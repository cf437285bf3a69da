// Package tracker advances persisted zones through their lifecycle as new
// candles arrive.
package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"zone-scanner-bot/internal/market"
	"zone-scanner-bot/internal/zones"
)

// ZoneTracker applies new candles to a symbol's active zones and persists
// the resulting lifecycle transitions. Updates for one symbol are serialized
// through a per-symbol lock so concurrent candles cannot produce lost updates.
type ZoneTracker struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	repo   zones.ZoneRepository
	params zones.LifecycleParams
	logger zerolog.Logger
}

// NewZoneTracker creates a tracker, validating the lifecycle parameters.
func NewZoneTracker(repo zones.ZoneRepository, params zones.LifecycleParams, logger zerolog.Logger) (*ZoneTracker, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lifecycle params: %w", err)
	}
	return &ZoneTracker{
		locks:  make(map[string]*sync.Mutex),
		repo:   repo,
		params: params,
		logger: logger.With().Str("component", "tracker").Logger(),
	}, nil
}

// ProcessCandle applies one candle to every active zone of the symbol and
// returns the touch events it produced. Repository failures are hard errors;
// persistence integrity is never silently dropped.
func (t *ZoneTracker) ProcessCandle(ctx context.Context, symbol string, candle market.Candle) ([]zones.ZoneTouch, error) {
	lock := t.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	active, err := t.repo.GetActiveZones(ctx, symbol, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load active zones for %s: %w", symbol, err)
	}

	var touches []zones.ZoneTouch
	for _, zone := range active {
		updated, touch := zones.UpdateLifecycle(*zone, candle, t.params)
		if touch == nil {
			continue
		}

		if err := t.repo.UpdateZoneLifecycle(ctx, updated.ID, updated.Status, updated.TestCount, updated.LastTestedAt); err != nil {
			return touches, fmt.Errorf("failed to persist lifecycle update for zone %s: %w", updated.ID, err)
		}
		if err := t.repo.RecordTouch(ctx, touch); err != nil {
			return touches, fmt.Errorf("failed to record touch for zone %s: %w", updated.ID, err)
		}
		touches = append(touches, *touch)

		evt := t.logger.Debug()
		if updated.Status == zones.StatusBroken {
			evt = t.logger.Info()
		}
		evt.
			Str("symbol", symbol).
			Str("zone_id", updated.ID).
			Str("outcome", string(touch.Outcome)).
			Str("status", string(updated.Status)).
			Int("test_count", updated.TestCount).
			Msg("zone touched")
	}

	return touches, nil
}

// symbolLock returns the mutex owning writes for a symbol, creating it on
// first use.
func (t *ZoneTracker) symbolLock(symbol string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[symbol] = lock
	}
	return lock
}
