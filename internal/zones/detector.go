package zones

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zone-scanner-bot/internal/market"
)

// DetectionParams holds the tunable thresholds for zone detection.
// All percentages are expressed in percent (1.5 means 1.5%).
type DetectionParams struct {
	MinZoneSizePct            float64 `json:"min_zone_size_pct"`           // reject zones tighter than this
	MaxZoneSizePct            float64 `json:"max_zone_size_pct"`           // reject zones wider than this
	MinVolumeRatio            float64 `json:"min_volume_ratio"`            // impulse volume vs consolidation volume
	ConsolidationThresholdPct float64 `json:"consolidation_threshold_pct"` // max range of a qualifying window
	ImpulseMultiplier         float64 `json:"impulse_multiplier"`          // impulse move vs zone height
	ConsolidationWindow       int     `json:"consolidation_window"`        // candles in the consolidation window
	ImpulseWindow             int     `json:"impulse_window"`              // candles in the impulse window
}

// DefaultDetectionParams returns the thresholds used when none are configured.
// These are starting points, not gospel; tune them via backtesting.
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		MinZoneSizePct:            0.3,
		MaxZoneSizePct:            5.0,
		MinVolumeRatio:            1.2,
		ConsolidationThresholdPct: 5.0,
		ImpulseMultiplier:         1.0,
		ConsolidationWindow:       20,
		ImpulseWindow:             3,
	}
}

// Validate checks the parameter set and fails fast on invalid configuration.
func (p DetectionParams) Validate() error {
	if p.ConsolidationWindow < 2 {
		return fmt.Errorf("consolidation_window must be at least 2, got %d", p.ConsolidationWindow)
	}
	if p.ImpulseWindow < 1 {
		return fmt.Errorf("impulse_window must be at least 1, got %d", p.ImpulseWindow)
	}
	if p.MinZoneSizePct < 0 {
		return fmt.Errorf("min_zone_size_pct must not be negative, got %.4f", p.MinZoneSizePct)
	}
	if p.MinZoneSizePct > p.MaxZoneSizePct {
		return fmt.Errorf("min_zone_size_pct %.4f exceeds max_zone_size_pct %.4f", p.MinZoneSizePct, p.MaxZoneSizePct)
	}
	if p.ConsolidationThresholdPct <= 0 {
		return fmt.Errorf("consolidation_threshold_pct must be positive, got %.4f", p.ConsolidationThresholdPct)
	}
	if p.ImpulseMultiplier <= 0 {
		return fmt.Errorf("impulse_multiplier must be positive, got %.4f", p.ImpulseMultiplier)
	}
	if p.MinVolumeRatio <= 0 {
		return fmt.Errorf("min_volume_ratio must be positive, got %.4f", p.MinVolumeRatio)
	}
	return nil
}

// Detector scans candle series for supply/demand zone candidates
type Detector struct {
	params DetectionParams
	logger zerolog.Logger
}

// NewDetector creates a detector, validating the parameters up front.
func NewDetector(params DetectionParams, logger zerolog.Logger) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection params: %w", err)
	}
	return &Detector{
		params: params,
		logger: logger.With().Str("component", "detector").Logger(),
	}, nil
}

// DetectZones scans an ascending candle series and returns unscored zone
// candidates (status FRESH, test count 0). A series shorter than
// consolidation_window + impulse_window yields an empty result.
//
// The scan is deterministic: the same series and parameters always produce
// the same candidates, ids included.
func (d *Detector) DetectZones(symbol, timeframe string, candles []market.Candle) []Zone {
	w := d.params.ConsolidationWindow
	iw := d.params.ImpulseWindow
	if len(candles) < w+iw {
		return nil
	}

	var zones []Zone
	for i := 0; i+w+iw <= len(candles); i++ {
		window := candles[i : i+w]
		high, low, avgClose := windowStats(window)
		if avgClose <= 0 {
			continue
		}

		// Consolidation: total range tight relative to average close
		heightPct := (high - low) / avgClose * 100
		if heightPct > d.params.ConsolidationThresholdPct {
			continue
		}
		if heightPct < d.params.MinZoneSizePct || heightPct > d.params.MaxZoneSizePct {
			continue
		}
		if low >= high {
			// Malformed window geometry, never persist it
			d.logger.Debug().
				Str("symbol", symbol).
				Float64("low", low).
				Float64("high", high).
				Msg("rejecting candidate with invalid geometry")
			continue
		}

		// Impulse: directional move immediately after the window
		impulse := candles[i+w : i+w+iw]
		startClose := impulse[0].Close
		endClose := impulse[iw-1].Close
		if startClose <= 0 || endClose == startClose {
			continue
		}
		impulsePct := math.Abs(endClose-startClose) / startClose * 100
		if impulsePct < d.params.ImpulseMultiplier*heightPct {
			continue
		}

		// Volume conviction: impulse volume vs consolidation volume
		consVol := avgVolume(window)
		impVol := avgVolume(impulse)
		if consVol <= 0 {
			continue
		}
		volumeRatio := impVol / consVol
		if volumeRatio < d.params.MinVolumeRatio {
			continue
		}

		zoneType := DemandZone
		if endClose < startClose {
			zoneType = SupplyZone
		}

		zone := Zone{
			ID:             zoneID(symbol, timeframe, zoneType, window[0].OpenTime),
			Symbol:         symbol,
			Timeframe:      timeframe,
			Type:           zoneType,
			PriceLow:       low,
			PriceHigh:      high,
			FormationStart: window[0].OpenedAt(),
			FormationEnd:   window[w-1].ClosedAt(),
			ImpulseMovePct: impulsePct,
			VolumeRatio:    volumeRatio,
			Status:         StatusFresh,
			TestCount:      0,
			CreatedAt:      window[w-1].ClosedAt(),
		}
		zones = mergeCandidate(zones, zone)
	}

	return zones
}

// mergeCandidate applies the overlap policy: when a new candidate's price
// range overlaps an earlier candidate, the older one is superseded and
// dropped regardless of type.
func mergeCandidate(zones []Zone, candidate Zone) []Zone {
	kept := zones[:0]
	for _, z := range zones {
		if z.Intersects(candidate.PriceLow, candidate.PriceHigh) {
			continue
		}
		kept = append(kept, z)
	}
	return append(kept, candidate)
}

// zoneID derives a stable id from the zone's formation so detection stays
// reproducible across runs.
func zoneID(symbol, timeframe string, zoneType ZoneType, openTime int64) string {
	key := fmt.Sprintf("%s_%s_%s_%d", symbol, timeframe, zoneType, openTime)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func windowStats(candles []market.Candle) (high, low, avgClose float64) {
	high = candles[0].High
	low = candles[0].Low
	sum := 0.0
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
		sum += c.Close
	}
	return high, low, sum / float64(len(candles))
}

func avgVolume(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}
