package scanner

import (
	"math"
	"sort"

	"zone-scanner-bot/internal/zones"
)

// Composite rating weights. Distance to the zone dominates, then the
// strength computed at creation, then how fresh the zone still is.
const (
	distanceWeight  = 0.40
	strengthWeight  = 0.35
	freshnessWeight = 0.25
)

// EvaluateZone rates a single zone against the current price. The second
// return value is false when the zone does not pass the filters.
func EvaluateZone(zone zones.Zone, currentPrice float64, filters ScanFilters) (ScanResult, bool) {
	if currentPrice <= 0 || zone.Status == zones.StatusBroken {
		return ScanResult{}, false
	}

	distancePct := math.Abs(currentPrice-zone.Midpoint()) / currentPrice * 100
	if distancePct > filters.MaxDistancePercent {
		return ScanResult{}, false
	}
	if zone.StrengthScore < filters.MinStrength {
		return ScanResult{}, false
	}

	distanceScore := 100 - math.Min(distancePct/filters.MaxDistancePercent*100, 100)
	freshness := freshnessScore(zone)

	rating := distanceWeight*distanceScore +
		strengthWeight*zone.StrengthScore +
		freshnessWeight*freshness
	if rating < filters.MinRating {
		return ScanResult{}, false
	}

	return ScanResult{
		Symbol:          zone.Symbol,
		CurrentPrice:    currentPrice,
		Zone:            zone,
		DistancePercent: distancePct,
		DistanceScore:   distanceScore,
		FreshnessScore:  freshness,
		CompositeRating: rating,
		Recommendation:  recommendation(zone.Type, rating),
	}, true
}

// freshnessScore maps lifecycle state to a 0-100 reliability score.
// FRESH zones score full marks; each respected touch erodes the score.
func freshnessScore(zone zones.Zone) float64 {
	switch zone.Status {
	case zones.StatusFresh:
		return 100
	case zones.StatusTested:
		switch zone.TestCount {
		case 1:
			return 80
		case 2:
			return 60
		default:
			return 20
		}
	case zones.StatusWeak:
		return 40
	}
	return 0
}

// recommendation converts a composite rating into a human label
func recommendation(zoneType zones.ZoneType, rating float64) string {
	action := "BUY"
	if zoneType == zones.SupplyZone {
		action = "SELL"
	}
	switch {
	case rating >= 80:
		return "STRONG " + action + " ZONE"
	case rating >= 65:
		return action + " ZONE"
	case rating >= 50:
		return "WATCH"
	}
	return "NEUTRAL"
}

// RankResults sorts results by composite rating descending; ties go to the
// zone closer to the current price.
func RankResults(results []ScanResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CompositeRating != results[j].CompositeRating {
			return results[i].CompositeRating > results[j].CompositeRating
		}
		return results[i].DistancePercent < results[j].DistancePercent
	})
}

// bestResult returns the highest-rated result of a symbol's qualifying zones
func bestResult(results []ScanResult) (ScanResult, bool) {
	if len(results) == 0 {
		return ScanResult{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.CompositeRating > best.CompositeRating ||
			(r.CompositeRating == best.CompositeRating && r.DistancePercent < best.DistancePercent) {
			best = r
		}
	}
	return best, true
}
