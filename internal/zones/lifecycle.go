package zones

import (
	"fmt"

	"zone-scanner-bot/internal/market"
)

// LifecycleParams configures how touches are classified and when a
// repeatedly tested zone is downgraded to WEAK.
type LifecycleParams struct {
	// BreakTolerancePct is how far beyond the zone boundary a close may
	// end before the touch counts as a break, in percent of the boundary.
	BreakTolerancePct float64 `json:"break_tolerance_pct"`
	// WeakTouchThreshold is the respected-touch count at which a TESTED
	// zone becomes WEAK.
	WeakTouchThreshold int `json:"weak_touch_threshold"`
}

// DefaultLifecycleParams returns the standard lifecycle thresholds.
func DefaultLifecycleParams() LifecycleParams {
	return LifecycleParams{
		BreakTolerancePct:  0.1,
		WeakTouchThreshold: 3,
	}
}

// Validate fails fast on unusable lifecycle configuration.
func (p LifecycleParams) Validate() error {
	if p.BreakTolerancePct < 0 {
		return fmt.Errorf("break_tolerance_pct must not be negative, got %.4f", p.BreakTolerancePct)
	}
	if p.WeakTouchThreshold < 1 {
		return fmt.Errorf("weak_touch_threshold must be at least 1, got %d", p.WeakTouchThreshold)
	}
	return nil
}

// UpdateLifecycle applies one candle to a zone and returns the updated zone
// plus a touch record, or the zone unchanged and nil when the candle does
// not intersect the zone. It is a pure function; the caller owns persistence.
//
// BROKEN zones are terminal and never change again.
func UpdateLifecycle(zone Zone, candle market.Candle, params LifecycleParams) (Zone, *ZoneTouch) {
	if zone.Status == StatusBroken {
		return zone, nil
	}
	if !zone.Intersects(candle.Low, candle.High) {
		return zone, nil
	}

	outcome := classifyTouch(zone, candle, params.BreakTolerancePct)

	touchedAt := candle.ClosedAt()
	zone.TestCount++
	zone.LastTestedAt = &touchedAt
	zone.Status = NextStatus(zone.Status, outcome, zone.TestCount, params.WeakTouchThreshold)

	touch := &ZoneTouch{
		ZoneID:    zone.ID,
		Symbol:    zone.Symbol,
		TouchedAt: touchedAt,
		Price:     candle.Close,
		Outcome:   outcome,
	}
	return zone, touch
}

// classifyTouch decides whether a candle respected or broke the zone.
// A demand zone breaks when the close ends below the floor by more than
// the tolerance; a supply zone mirrors that against the ceiling.
func classifyTouch(zone Zone, candle market.Candle, tolerancePct float64) TouchOutcome {
	switch zone.Type {
	case DemandZone:
		floor := zone.PriceLow * (1 - tolerancePct/100)
		if candle.Close < floor {
			return OutcomeBroken
		}
	case SupplyZone:
		ceiling := zone.PriceHigh * (1 + tolerancePct/100)
		if candle.Close > ceiling {
			return OutcomeBroken
		}
	}
	return OutcomeRespected
}
