package zones

import (
	"testing"

	"zone-scanner-bot/internal/market"
)

func demandZone() Zone {
	return Zone{
		ID:        "demand-1",
		Symbol:    "BTCUSDT",
		Type:      DemandZone,
		PriceLow:  99,
		PriceHigh: 101,
		Status:    StatusFresh,
	}
}

func supplyZone() Zone {
	return Zone{
		ID:        "supply-1",
		Symbol:    "BTCUSDT",
		Type:      SupplyZone,
		PriceLow:  109,
		PriceHigh: 111,
		Status:    StatusFresh,
	}
}

func candleAt(low, high, close float64) market.Candle {
	return market.Candle{
		OpenTime:  3600000,
		Open:      (low + high) / 2,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
		CloseTime: 7199999,
	}
}

// TestLifecycleNoIntersection verifies a candle outside the zone changes
// nothing and emits no touch
func TestLifecycleNoIntersection(t *testing.T) {
	zone := demandZone()
	updated, touch := UpdateLifecycle(zone, candleAt(103, 105, 104), DefaultLifecycleParams())

	if touch != nil {
		t.Error("non-intersecting candle should not produce a touch")
	}
	if updated != zone {
		t.Error("non-intersecting candle should leave the zone unchanged")
	}
}

// TestLifecycleRespectedTouch verifies FRESH -> TESTED on the first bounce
func TestLifecycleRespectedTouch(t *testing.T) {
	zone := demandZone()
	updated, touch := UpdateLifecycle(zone, candleAt(98.5, 100.5, 100.2), DefaultLifecycleParams())

	if touch == nil {
		t.Fatal("intersecting candle should produce a touch")
	}
	if touch.Outcome != OutcomeRespected {
		t.Errorf("close above the floor should be RESPECTED, got %s", touch.Outcome)
	}
	if updated.Status != StatusTested {
		t.Errorf("first respected touch should move FRESH -> TESTED, got %s", updated.Status)
	}
	if updated.TestCount != 1 {
		t.Errorf("test count should be 1, got %d", updated.TestCount)
	}
	if updated.LastTestedAt == nil {
		t.Error("last tested timestamp should be set")
	}
}

// TestLifecycleBreak verifies a decisive close below the floor breaks the
// zone immediately, even from FRESH
func TestLifecycleBreak(t *testing.T) {
	zone := demandZone()
	updated, touch := UpdateLifecycle(zone, candleAt(96, 100, 97), DefaultLifecycleParams())

	if touch == nil {
		t.Fatal("intersecting candle should produce a touch")
	}
	if touch.Outcome != OutcomeBroken {
		t.Errorf("close far below the floor should be BROKEN, got %s", touch.Outcome)
	}
	if updated.Status != StatusBroken {
		t.Errorf("broken outcome should set status BROKEN, got %s", updated.Status)
	}
	if updated.TestCount != 1 {
		t.Errorf("test count should still increment on a break, got %d", updated.TestCount)
	}
}

// TestLifecycleBreakTolerance verifies a close just beyond the boundary but
// within tolerance still counts as respected
func TestLifecycleBreakTolerance(t *testing.T) {
	params := LifecycleParams{BreakTolerancePct: 0.5, WeakTouchThreshold: 3}

	zone := demandZone()
	// Floor with tolerance: 99 * 0.995 = 98.505; close 98.6 is inside it
	_, touch := UpdateLifecycle(zone, candleAt(98.4, 100, 98.6), params)
	if touch == nil || touch.Outcome != OutcomeRespected {
		t.Error("close within tolerance should be RESPECTED")
	}
}

// TestLifecycleSupplyMirror verifies the inverted logic for supply zones
func TestLifecycleSupplyMirror(t *testing.T) {
	params := DefaultLifecycleParams()

	zone := supplyZone()
	_, touch := UpdateLifecycle(zone, candleAt(109.5, 111.5, 110), params)
	if touch == nil || touch.Outcome != OutcomeRespected {
		t.Error("close below the ceiling should be RESPECTED for supply")
	}

	zone = supplyZone()
	updated, touch := UpdateLifecycle(zone, candleAt(110, 114, 113.5), params)
	if touch == nil || touch.Outcome != OutcomeBroken {
		t.Error("close far above the ceiling should break a supply zone")
	}
	if updated.Status != StatusBroken {
		t.Errorf("expected BROKEN, got %s", updated.Status)
	}
}

// TestLifecycleWeakAfterRepeatedTests verifies TESTED -> WEAK at the
// configured respected-touch threshold
func TestLifecycleWeakAfterRepeatedTests(t *testing.T) {
	params := DefaultLifecycleParams() // threshold 3
	zone := demandZone()
	bounce := candleAt(98.8, 100.2, 100)

	zone, _ = UpdateLifecycle(zone, bounce, params)
	if zone.Status != StatusTested {
		t.Fatalf("after touch 1 expected TESTED, got %s", zone.Status)
	}
	zone, _ = UpdateLifecycle(zone, bounce, params)
	if zone.Status != StatusTested {
		t.Fatalf("after touch 2 expected TESTED, got %s", zone.Status)
	}
	zone, _ = UpdateLifecycle(zone, bounce, params)
	if zone.Status != StatusWeak {
		t.Fatalf("after touch 3 expected WEAK, got %s", zone.Status)
	}

	// WEAK zones stay WEAK on further respected touches
	zone, _ = UpdateLifecycle(zone, bounce, params)
	if zone.Status != StatusWeak {
		t.Errorf("WEAK should persist until broken, got %s", zone.Status)
	}
	if zone.TestCount != 4 {
		t.Errorf("expected 4 touches recorded, got %d", zone.TestCount)
	}
}

// TestLifecycleBrokenIsTerminal verifies BROKEN zones never change again
func TestLifecycleBrokenIsTerminal(t *testing.T) {
	zone := demandZone()
	zone.Status = StatusBroken
	zone.TestCount = 2

	updated, touch := UpdateLifecycle(zone, candleAt(98.8, 100.2, 100), DefaultLifecycleParams())
	if touch != nil {
		t.Error("broken zone should not accept further touches")
	}
	if updated.Status != StatusBroken || updated.TestCount != 2 {
		t.Error("broken zone should be completely unchanged")
	}
}

// TestNextStatusMonotonic exhaustively verifies the transition function
// never moves backwards
func TestNextStatusMonotonic(t *testing.T) {
	rank := map[ZoneStatus]int{
		StatusFresh:  0,
		StatusTested: 1,
		StatusWeak:   2,
		StatusBroken: 3,
	}
	statuses := []ZoneStatus{StatusFresh, StatusTested, StatusWeak, StatusBroken}
	outcomes := []TouchOutcome{OutcomeRespected, OutcomeBroken}

	for _, current := range statuses {
		for _, outcome := range outcomes {
			for count := 1; count <= 5; count++ {
				next := NextStatus(current, outcome, count, 3)
				if rank[next] < rank[current] {
					t.Errorf("regression %s -> %s (outcome=%s count=%d)", current, next, outcome, count)
				}
				if current == StatusBroken && next != StatusBroken {
					t.Errorf("BROKEN must be terminal, got %s", next)
				}
				if outcome == OutcomeBroken && current != StatusBroken && next != StatusBroken {
					t.Errorf("broken outcome must end in BROKEN, got %s from %s", next, current)
				}
			}
		}
	}
}

// TestLifecycleParamsValidation verifies lifecycle configuration validation
func TestLifecycleParamsValidation(t *testing.T) {
	if err := (LifecycleParams{BreakTolerancePct: -0.1, WeakTouchThreshold: 3}).Validate(); err == nil {
		t.Error("negative tolerance should fail validation")
	}
	if err := (LifecycleParams{BreakTolerancePct: 0.1, WeakTouchThreshold: 0}).Validate(); err == nil {
		t.Error("zero weak threshold should fail validation")
	}
	if err := DefaultLifecycleParams().Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}
