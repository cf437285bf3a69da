// Package zones implements supply/demand zone detection, scoring and
// lifecycle tracking over candlestick series.
package zones

import (
	"context"
	"errors"
	"time"
)

// ZoneType represents the direction a zone originated from
type ZoneType string

const (
	DemandZone ZoneType = "DEMAND" // upward impulse out of consolidation
	SupplyZone ZoneType = "SUPPLY" // downward impulse out of consolidation
)

// ZoneStatus represents the lifecycle state of a zone.
// Transitions only move forward: FRESH -> TESTED -> WEAK -> BROKEN.
// BROKEN is terminal; a zone may jump straight from any state to BROKEN.
type ZoneStatus string

const (
	StatusFresh  ZoneStatus = "FRESH"
	StatusTested ZoneStatus = "TESTED"
	StatusWeak   ZoneStatus = "WEAK"
	StatusBroken ZoneStatus = "BROKEN"
)

// TouchOutcome classifies what price did after entering a zone
type TouchOutcome string

const (
	OutcomeRespected TouchOutcome = "RESPECTED"
	OutcomeBroken    TouchOutcome = "BROKEN"
)

// Zone represents a supply or demand zone: a tight consolidation from
// which a sharp directional move originated.
type Zone struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Timeframe      string     `json:"timeframe"`
	Type           ZoneType   `json:"type"`
	PriceLow       float64    `json:"price_low"`
	PriceHigh      float64    `json:"price_high"`
	FormationStart time.Time  `json:"formation_start"`
	FormationEnd   time.Time  `json:"formation_end"`
	ImpulseMovePct float64    `json:"impulse_move_pct"` // percent
	VolumeRatio    float64    `json:"volume_ratio"`
	StrengthScore  float64    `json:"strength_score"` // 0-100
	Status         ZoneStatus `json:"status"`
	TestCount      int        `json:"test_count"`
	LastTestedAt   *time.Time `json:"last_tested_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Midpoint returns the center of the zone's price band.
func (z Zone) Midpoint() float64 {
	return (z.PriceLow + z.PriceHigh) / 2
}

// HeightPct returns the zone height as a percentage of its midpoint.
func (z Zone) HeightPct() float64 {
	mid := z.Midpoint()
	if mid <= 0 {
		return 0
	}
	return (z.PriceHigh - z.PriceLow) / mid * 100
}

// Intersects reports whether the [low, high] price range overlaps the zone.
func (z Zone) Intersects(low, high float64) bool {
	return low <= z.PriceHigh && high >= z.PriceLow
}

// ZoneTouch is an append-only audit record of a candle intersecting a zone.
type ZoneTouch struct {
	ZoneID    string       `json:"zone_id"`
	Symbol    string       `json:"symbol"`
	TouchedAt time.Time    `json:"touched_at"`
	Price     float64      `json:"price"`
	Outcome   TouchOutcome `json:"outcome"`
}

// NextStatus is the total transition function of the zone state machine.
// testCount is the count after the touch being applied; weakThreshold is
// the number of respected touches after which a TESTED zone turns WEAK.
// The result never moves backwards and BROKEN is terminal.
func NextStatus(current ZoneStatus, outcome TouchOutcome, testCount, weakThreshold int) ZoneStatus {
	if current == StatusBroken {
		return StatusBroken
	}
	if outcome == OutcomeBroken {
		return StatusBroken
	}
	switch current {
	case StatusFresh:
		return StatusTested
	case StatusTested:
		if testCount >= weakThreshold {
			return StatusWeak
		}
		return StatusTested
	case StatusWeak:
		return StatusWeak
	}
	return current
}

// ErrZoneNotFound is returned when a zone id does not exist in the repository.
var ErrZoneNotFound = errors.New("zone not found")

// ZoneRepository defines the persistence contract the tracker and scanner
// depend on. Implementations must make lifecycle updates atomic: a single
// update may never regress status or decrease test_count.
type ZoneRepository interface {
	// CreateZone persists a new zone.
	CreateZone(ctx context.Context, zone *Zone) error

	// GetZoneByID retrieves a zone by id, ErrZoneNotFound if absent.
	GetZoneByID(ctx context.Context, id string) (*Zone, error)

	// GetActiveZones returns non-BROKEN zones for a symbol. zoneType ""
	// matches both types; minStrength 0 disables the strength filter.
	GetActiveZones(ctx context.Context, symbol string, zoneType ZoneType, minStrength float64) ([]*Zone, error)

	// UpdateZoneLifecycle persists the mutable lifecycle fields of a zone.
	UpdateZoneLifecycle(ctx context.Context, id string, status ZoneStatus, testCount int, lastTestedAt *time.Time) error

	// RecordTouch appends a touch event to the audit trail.
	RecordTouch(ctx context.Context, touch *ZoneTouch) error
}
