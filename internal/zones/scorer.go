package zones

import (
	"fmt"
	"math"
)

// ScoreParams configures the zone strength score composition.
// Weights must sum to 1.0; each sub-score is normalized to 0-100
// before weighting.
type ScoreParams struct {
	ImpulseWeight   float64 `json:"impulse_weight"`
	VolumeWeight    float64 `json:"volume_weight"`
	TightnessWeight float64 `json:"tightness_weight"`
	FreshnessWeight float64 `json:"freshness_weight"`

	// ImpulseCeiling is the impulse-to-height ratio that scores 100;
	// an impulse of 5x the zone height maxes out by default.
	ImpulseCeiling float64 `json:"impulse_ceiling"`
	// VolumeCeiling is the volume ratio that scores 100.
	VolumeCeiling float64 `json:"volume_ceiling"`
	// MaxZoneSizePct normalizes the tightness sub-score; should match
	// the detector's max_zone_size_pct.
	MaxZoneSizePct float64 `json:"max_zone_size_pct"`
}

// DefaultScoreParams returns the standard weighting.
func DefaultScoreParams() ScoreParams {
	return ScoreParams{
		ImpulseWeight:   0.35, // 35% - strength of the move out of the zone
		VolumeWeight:    0.25, // 25% - volume conviction
		TightnessWeight: 0.25, // 25% - tighter consolidation scores higher
		FreshnessWeight: 0.15, // 15% - always full marks at creation
		ImpulseCeiling:  5.0,
		VolumeCeiling:   3.0,
		MaxZoneSizePct:  5.0,
	}
}

// Validate checks the weights sum to 1.0 and the ceilings are usable.
func (p ScoreParams) Validate() error {
	total := p.ImpulseWeight + p.VolumeWeight + p.TightnessWeight + p.FreshnessWeight
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("score weights must sum to 1.0, got %.2f", total)
	}
	if p.ImpulseCeiling <= 0 {
		return fmt.Errorf("impulse_ceiling must be positive, got %.4f", p.ImpulseCeiling)
	}
	if p.VolumeCeiling <= 0 {
		return fmt.Errorf("volume_ceiling must be positive, got %.4f", p.VolumeCeiling)
	}
	if p.MaxZoneSizePct <= 0 {
		return fmt.Errorf("max_zone_size_pct must be positive, got %.4f", p.MaxZoneSizePct)
	}
	return nil
}

// Scorer computes a 0-100 strength score for zone candidates
type Scorer struct {
	params ScoreParams
}

// NewScorer creates a scorer, validating the parameters up front.
func NewScorer(params ScoreParams) (*Scorer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid score params: %w", err)
	}
	return &Scorer{params: params}, nil
}

// ScoreZone computes the strength score from the zone's stored attributes
// alone. It is pure: re-scoring an unchanged zone yields the same number.
func (s *Scorer) ScoreZone(zone Zone) float64 {
	heightPct := zone.HeightPct()

	// Impulse strength: how many zone-heights the move covered
	impulseScore := 0.0
	if heightPct > 0 {
		ratio := zone.ImpulseMovePct / heightPct
		impulseScore = math.Min(ratio/s.params.ImpulseCeiling, 1.0) * 100
	}

	// Volume conviction
	volumeScore := math.Min(zone.VolumeRatio/s.params.VolumeCeiling, 1.0) * 100

	// Consolidation tightness: inverse of height relative to the max band
	tightness := 1.0 - heightPct/s.params.MaxZoneSizePct
	tightnessScore := clamp(tightness, 0, 1) * 100

	// Freshness is always full at creation; it decays only through the
	// lifecycle tracker, never at scoring time.
	freshnessScore := 100.0

	total := impulseScore*s.params.ImpulseWeight +
		volumeScore*s.params.VolumeWeight +
		tightnessScore*s.params.TightnessWeight +
		freshnessScore*s.params.FreshnessWeight

	return clamp(total, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
