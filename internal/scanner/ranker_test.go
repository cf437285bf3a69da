package scanner

import (
	"testing"

	"zone-scanner-bot/internal/zones"
)

func freshZone(symbol string, low, high, strength float64) zones.Zone {
	return zones.Zone{
		ID:            symbol + "-zone",
		Symbol:        symbol,
		Type:          zones.DemandZone,
		PriceLow:      low,
		PriceHigh:     high,
		StrengthScore: strength,
		Status:        zones.StatusFresh,
	}
}

func openFilters() ScanFilters {
	return ScanFilters{MaxDistancePercent: 5, MinStrength: 0, MinRating: 0}
}

// TestEvaluateZoneCloserRanksHigher covers the cross-instrument ranking
// property: equal strength and status, 1% vs 4% away, the closer zone wins.
func TestEvaluateZoneCloserRanksHigher(t *testing.T) {
	filters := openFilters()

	near, ok := EvaluateZone(freshZone("AAAUSDT", 98.5, 99.5, 80), 100, filters) // midpoint 99, 1% away
	if !ok {
		t.Fatal("near zone should qualify")
	}
	far, ok := EvaluateZone(freshZone("BBBUSDT", 95.5, 96.5, 80), 100, filters) // midpoint 96, 4% away
	if !ok {
		t.Fatal("far zone should qualify")
	}

	if near.CompositeRating <= far.CompositeRating {
		t.Errorf("closer zone should rate strictly higher: near=%.2f far=%.2f",
			near.CompositeRating, far.CompositeRating)
	}

	results := []ScanResult{far, near}
	RankResults(results)
	if results[0].Symbol != "AAAUSDT" {
		t.Errorf("closer zone should rank first, got %s", results[0].Symbol)
	}
}

// TestEvaluateZoneDistanceFilter verifies zones beyond max distance are
// discarded
func TestEvaluateZoneDistanceFilter(t *testing.T) {
	zone := freshZone("BTCUSDT", 89.5, 90.5, 80) // midpoint 90, 10% from price 100
	if _, ok := EvaluateZone(zone, 100, openFilters()); ok {
		t.Error("zone beyond max_distance_percent should be discarded")
	}
}

// TestEvaluateZoneStrengthAndRatingFilters verifies the minimum filters
func TestEvaluateZoneStrengthAndRatingFilters(t *testing.T) {
	filters := openFilters()
	filters.MinStrength = 70
	if _, ok := EvaluateZone(freshZone("BTCUSDT", 98.5, 99.5, 60), 100, filters); ok {
		t.Error("zone below min_strength should be discarded")
	}

	filters = openFilters()
	filters.MinRating = 99
	if _, ok := EvaluateZone(freshZone("BTCUSDT", 95.5, 96.5, 10), 100, filters); ok {
		t.Error("zone below min_rating should be discarded")
	}
}

// TestEvaluateZoneBrokenExcluded verifies BROKEN zones never surface
func TestEvaluateZoneBrokenExcluded(t *testing.T) {
	zone := freshZone("BTCUSDT", 98.5, 99.5, 90)
	zone.Status = zones.StatusBroken
	if _, ok := EvaluateZone(zone, 100, openFilters()); ok {
		t.Error("broken zone should never qualify")
	}
}

// TestEvaluateZoneRatingBounds verifies ratings stay within [0,100]
func TestEvaluateZoneRatingBounds(t *testing.T) {
	cases := []struct {
		zone  zones.Zone
		price float64
	}{
		{freshZone("A", 98.5, 99.5, 0), 100},
		{freshZone("B", 98.5, 99.5, 100), 100},
		{freshZone("C", 99.99, 100.01, 55), 100},
	}
	for _, tc := range cases {
		result, ok := EvaluateZone(tc.zone, tc.price, openFilters())
		if !ok {
			continue
		}
		if result.CompositeRating < 0 || result.CompositeRating > 100 {
			t.Errorf("%s: rating %.4f outside [0,100]", tc.zone.Symbol, result.CompositeRating)
		}
	}
}

// TestFreshnessScoreMapping verifies the status/test-count decay table
func TestFreshnessScoreMapping(t *testing.T) {
	cases := []struct {
		status   zones.ZoneStatus
		count    int
		expected float64
	}{
		{zones.StatusFresh, 0, 100},
		{zones.StatusTested, 1, 80},
		{zones.StatusTested, 2, 60},
		{zones.StatusTested, 5, 20},
		{zones.StatusWeak, 3, 40},
		{zones.StatusBroken, 1, 0},
	}
	for _, tc := range cases {
		zone := freshZone("BTCUSDT", 98.5, 99.5, 80)
		zone.Status = tc.status
		zone.TestCount = tc.count
		if got := freshnessScore(zone); got != tc.expected {
			t.Errorf("status=%s count=%d: expected %.0f, got %.0f", tc.status, tc.count, tc.expected, got)
		}
	}
}

// TestRankResultsTieBreak verifies equal ratings are ordered by distance
func TestRankResultsTieBreak(t *testing.T) {
	a := ScanResult{Symbol: "A", CompositeRating: 70, DistancePercent: 3}
	b := ScanResult{Symbol: "B", CompositeRating: 70, DistancePercent: 1}
	c := ScanResult{Symbol: "C", CompositeRating: 90, DistancePercent: 4}

	results := []ScanResult{a, b, c}
	RankResults(results)

	if results[0].Symbol != "C" || results[1].Symbol != "B" || results[2].Symbol != "A" {
		t.Errorf("unexpected order: %s, %s, %s", results[0].Symbol, results[1].Symbol, results[2].Symbol)
	}
}

// TestScanFiltersValidation verifies filter validation
func TestScanFiltersValidation(t *testing.T) {
	if err := (ScanFilters{MaxDistancePercent: 0}).Validate(); err == nil {
		t.Error("zero max distance should fail validation")
	}
	if err := (ScanFilters{MaxDistancePercent: 5, MinStrength: 120}).Validate(); err == nil {
		t.Error("min_strength above 100 should fail validation")
	}
	if err := (ScanFilters{MaxDistancePercent: 5, MinRating: -1}).Validate(); err == nil {
		t.Error("negative min_rating should fail validation")
	}
	if err := openFilters().Validate(); err != nil {
		t.Errorf("valid filters should pass, got %v", err)
	}
}
