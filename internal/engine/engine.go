// Package engine wires detection, scoring and persistence into one pipeline.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"zone-scanner-bot/internal/market"
	"zone-scanner-bot/internal/zones"
)

// ZoneEngine detects zone candidates in a candle series, scores them and
// persists the survivors. Detection and scoring are pure; all I/O happens
// at the repository boundary.
type ZoneEngine struct {
	detector *zones.Detector
	scorer   *zones.Scorer
	repo     zones.ZoneRepository
	logger   zerolog.Logger
}

// NewZoneEngine assembles the detection pipeline
func NewZoneEngine(detector *zones.Detector, scorer *zones.Scorer, repo zones.ZoneRepository, logger zerolog.Logger) *ZoneEngine {
	return &ZoneEngine{
		detector: detector,
		scorer:   scorer,
		repo:     repo,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// ProcessSeries runs detection over a candle series and persists new scored
// zones. Candidates overlapping an already persisted active zone of the same
// type are treated as duplicates and skipped, so re-running over an extended
// series stays idempotent.
func (e *ZoneEngine) ProcessSeries(ctx context.Context, symbol, timeframe string, candles []market.Candle) ([]zones.Zone, error) {
	candidates := e.detector.DetectZones(symbol, timeframe, candles)
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := e.repo.GetActiveZones(ctx, symbol, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing zones for %s: %w", symbol, err)
	}

	var created []zones.Zone
	for _, candidate := range candidates {
		if candidate.PriceLow >= candidate.PriceHigh {
			e.logger.Debug().
				Str("symbol", symbol).
				Float64("price_low", candidate.PriceLow).
				Float64("price_high", candidate.PriceHigh).
				Msg("dropping candidate with invalid geometry")
			continue
		}
		if overlapsExisting(existing, candidate) {
			continue
		}

		candidate.StrengthScore = e.scorer.ScoreZone(candidate)
		if err := e.repo.CreateZone(ctx, &candidate); err != nil {
			return created, fmt.Errorf("failed to persist zone for %s: %w", symbol, err)
		}
		created = append(created, candidate)

		e.logger.Info().
			Str("symbol", symbol).
			Str("zone_id", candidate.ID).
			Str("type", string(candidate.Type)).
			Float64("price_low", candidate.PriceLow).
			Float64("price_high", candidate.PriceHigh).
			Float64("strength", candidate.StrengthScore).
			Msg("zone created")
	}
	return created, nil
}

func overlapsExisting(existing []*zones.Zone, candidate zones.Zone) bool {
	for _, zone := range existing {
		if zone.Type == candidate.Type && zone.Intersects(candidate.PriceLow, candidate.PriceHigh) {
			return true
		}
	}
	return false
}
