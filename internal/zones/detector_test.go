package zones

import (
	"testing"

	"github.com/rs/zerolog"

	"zone-scanner-bot/internal/market"
)

func testDetectionParams() DetectionParams {
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

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	detector, err := NewDetector(testDetectionParams(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	return detector
}

// flatCandle builds one consolidation bar around price 100
func flatCandle(i int, volume float64) market.Candle {
	return market.Candle{
		OpenTime:  int64(i) * 3600000,
		Open:      100,
		High:      101,
		Low:       99,
		Close:     100,
		Volume:    volume,
		CloseTime: int64(i+1)*3600000 - 1,
	}
}

// risingCandle builds one impulse bar closing at the given price
func risingCandle(i int, close, volume float64) market.Candle {
	return market.Candle{
		OpenTime:  int64(i) * 3600000,
		Open:      close - 2,
		High:      close + 0.5,
		Low:       close - 2.5,
		Close:     close,
		Volume:    volume,
		CloseTime: int64(i+1)*3600000 - 1,
	}
}

// TestDetectDemandZone covers the canonical demand setup: a 20-bar tight
// consolidation followed by a 3-bar upward impulse on elevated volume.
func TestDetectDemandZone(t *testing.T) {
	detector := newTestDetector(t)

	candles := make([]market.Candle, 0, 23)
	for i := 0; i < 20; i++ {
		candles = append(candles, flatCandle(i, 1000))
	}
	// Impulse: closes 102 -> 106 is a 3.9% move vs a 2% zone height
	candles = append(candles,
		risingCandle(20, 102, 2000),
		risingCandle(21, 104, 2000),
		risingCandle(22, 106, 2000),
	)

	result := detector.DetectZones("BTCUSDT", "1h", candles)

	if len(result) != 1 {
		t.Fatalf("expected exactly one zone, got %d", len(result))
	}
	zone := result[0]
	if zone.Type != DemandZone {
		t.Errorf("expected DEMAND zone, got %s", zone.Type)
	}
	if zone.PriceLow != 99 || zone.PriceHigh != 101 {
		t.Errorf("expected boundaries [99, 101], got [%.2f, %.2f]", zone.PriceLow, zone.PriceHigh)
	}
	if zone.Status != StatusFresh {
		t.Errorf("new candidate should be FRESH, got %s", zone.Status)
	}
	if zone.TestCount != 0 {
		t.Errorf("new candidate should have zero touches, got %d", zone.TestCount)
	}
	if zone.VolumeRatio < 1.2 {
		t.Errorf("volume ratio should pass the 1.2 floor, got %.2f", zone.VolumeRatio)
	}
	if zone.ImpulseMovePct <= 0 {
		t.Errorf("impulse move should be positive, got %.4f", zone.ImpulseMovePct)
	}
	if zone.PriceLow >= zone.PriceHigh {
		t.Error("zone geometry invariant violated: price_low >= price_high")
	}
}

// TestDetectSupplyZone mirrors the demand setup with a downward impulse
func TestDetectSupplyZone(t *testing.T) {
	detector := newTestDetector(t)

	candles := make([]market.Candle, 0, 23)
	for i := 0; i < 20; i++ {
		candles = append(candles, flatCandle(i, 1000))
	}
	for i, close := range []float64{98, 96, 94} {
		candles = append(candles, market.Candle{
			OpenTime:  int64(20+i) * 3600000,
			Open:      close + 2,
			High:      close + 2.5,
			Low:       close - 0.5,
			Close:     close,
			Volume:    2000,
			CloseTime: int64(21+i)*3600000 - 1,
		})
	}

	result := detector.DetectZones("ETHUSDT", "1h", candles)

	if len(result) != 1 {
		t.Fatalf("expected exactly one zone, got %d", len(result))
	}
	if result[0].Type != SupplyZone {
		t.Errorf("expected SUPPLY zone, got %s", result[0].Type)
	}
}

// TestDetectShortSeries verifies a too-short series yields an empty result,
// not an error or panic
func TestDetectShortSeries(t *testing.T) {
	detector := newTestDetector(t)

	if got := detector.DetectZones("BTCUSDT", "1h", nil); len(got) != 0 {
		t.Errorf("nil series should yield no zones, got %d", len(got))
	}

	short := make([]market.Candle, 0, 22)
	for i := 0; i < 22; i++ { // one candle short of window + impulse
		short = append(short, flatCandle(i, 1000))
	}
	if got := detector.DetectZones("BTCUSDT", "1h", short); len(got) != 0 {
		t.Errorf("short series should yield no zones, got %d", len(got))
	}
}

// TestDetectLowVolumeRejected verifies the volume conviction filter
func TestDetectLowVolumeRejected(t *testing.T) {
	detector := newTestDetector(t)

	candles := make([]market.Candle, 0, 23)
	for i := 0; i < 20; i++ {
		candles = append(candles, flatCandle(i, 1000))
	}
	// Strong impulse, but no volume expansion behind it
	candles = append(candles,
		risingCandle(20, 102, 1000),
		risingCandle(21, 104, 1000),
		risingCandle(22, 106, 1000),
	)

	if got := detector.DetectZones("BTCUSDT", "1h", candles); len(got) != 0 {
		t.Errorf("low-volume impulse should be rejected, got %d zones", len(got))
	}
}

// TestDetectOverlapKeepsFreshest verifies the overlap policy: when two
// qualifying windows produce overlapping ranges, only the most recent
// candidate survives.
func TestDetectOverlapKeepsFreshest(t *testing.T) {
	detector := newTestDetector(t)

	candles := make([]market.Candle, 0, 24)
	for i := 0; i < 21; i++ {
		candles = append(candles, flatCandle(i, 1000))
	}
	candles = append(candles,
		risingCandle(21, 102, 2000),
		risingCandle(22, 104, 2000),
		risingCandle(23, 106, 2000),
	)

	result := detector.DetectZones("BTCUSDT", "1h", candles)

	if len(result) != 1 {
		t.Fatalf("overlapping candidates should collapse to one zone, got %d", len(result))
	}
	// The survivor is the fresher window starting at candle 1
	if got := result[0].FormationStart; !got.Equal(candles[1].OpenedAt()) {
		t.Errorf("expected freshest candidate to survive, formation start %v", got)
	}
}

// TestMergeCandidateSupersedesAcrossTypes verifies the overlap policy makes
// no type distinction: a fresher candidate replaces any overlapping older one
func TestMergeCandidateSupersedesAcrossTypes(t *testing.T) {
	older := Zone{ID: "older", Type: DemandZone, PriceLow: 99, PriceHigh: 101}
	fresher := Zone{ID: "fresher", Type: SupplyZone, PriceLow: 100, PriceHigh: 102}

	merged := mergeCandidate([]Zone{older}, fresher)

	if len(merged) != 1 {
		t.Fatalf("overlapping candidates should collapse to one, got %d", len(merged))
	}
	if merged[0].ID != "fresher" {
		t.Errorf("the fresher candidate should survive, got %s", merged[0].ID)
	}

	// Non-overlapping candidates coexist
	apart := Zone{ID: "apart", Type: DemandZone, PriceLow: 110, PriceHigh: 112}
	merged = mergeCandidate(merged, apart)
	if len(merged) != 2 {
		t.Errorf("non-overlapping candidates should both survive, got %d", len(merged))
	}
}

// TestDetectDeterministic verifies repeated runs produce identical output
func TestDetectDeterministic(t *testing.T) {
	detector := newTestDetector(t)

	candles := make([]market.Candle, 0, 23)
	for i := 0; i < 20; i++ {
		candles = append(candles, flatCandle(i, 1000))
	}
	candles = append(candles,
		risingCandle(20, 102, 2000),
		risingCandle(21, 104, 2000),
		risingCandle(22, 106, 2000),
	)

	first := detector.DetectZones("BTCUSDT", "1h", candles)
	second := detector.DetectZones("BTCUSDT", "1h", candles)

	if len(first) != len(second) {
		t.Fatalf("runs disagree on zone count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("zone %d differs between runs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

// TestDetectionParamsValidation verifies invalid configuration fails at
// construction time
func TestDetectionParamsValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DetectionParams)
	}{
		{"min above max zone size", func(p *DetectionParams) { p.MinZoneSizePct = 6.0 }},
		{"zero consolidation window", func(p *DetectionParams) { p.ConsolidationWindow = 0 }},
		{"zero impulse window", func(p *DetectionParams) { p.ImpulseWindow = 0 }},
		{"negative min zone size", func(p *DetectionParams) { p.MinZoneSizePct = -1 }},
		{"zero impulse multiplier", func(p *DetectionParams) { p.ImpulseMultiplier = 0 }},
		{"zero volume ratio", func(p *DetectionParams) { p.MinVolumeRatio = 0 }},
		{"zero consolidation threshold", func(p *DetectionParams) { p.ConsolidationThresholdPct = 0 }},
	}

	for _, tc := range cases {
		params := testDetectionParams()
		tc.mutate(&params)
		if _, err := NewDetector(params, zerolog.Nop()); err == nil {
			t.Errorf("%s: expected construction to fail", tc.name)
		}
	}
}

// BenchmarkDetectZones benchmarks a detection pass over 500 candles
func BenchmarkDetectZones(b *testing.B) {
	detector, err := NewDetector(testDetectionParams(), zerolog.Nop())
	if err != nil {
		b.Fatalf("NewDetector failed: %v", err)
	}

	candles := make([]market.Candle, 500)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 3600000,
			Open:      float64(100 + i%10),
			High:      float64(105 + i%10),
			Low:       float64(95 + i%10),
			Close:     float64(102 + i%10),
			Volume:    1000,
			CloseTime: int64(i+1)*3600000 - 1,
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.DetectZones("BTCUSDT", "1h", candles)
	}
}
