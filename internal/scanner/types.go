package scanner

import (
	"fmt"
	"time"

	"zone-scanner-bot/internal/zones"
)

// ScanResult represents one ranked zone opportunity. Results are ephemeral:
// they are recomputed on every scan and never written back to storage.
type ScanResult struct {
	Symbol          string     `json:"symbol"`
	CurrentPrice    float64    `json:"current_price"`
	Zone            zones.Zone `json:"zone"`
	DistancePercent float64    `json:"distance_percent"` // absolute, vs zone midpoint
	DistanceScore   float64    `json:"distance_score"`   // 0-100, closer is higher
	FreshnessScore  float64    `json:"freshness_score"`  // 0-100, decays with touches
	CompositeRating float64    `json:"composite_rating"` // 0-100
	Recommendation  string     `json:"recommendation"`
}

// ScanFilters restricts which zones qualify as opportunities
type ScanFilters struct {
	MaxDistancePercent float64 `json:"max_distance_percent"`
	MinStrength        float64 `json:"min_strength"`
	MinRating          float64 `json:"min_rating"`
	// AllPerSymbol keeps every qualifying zone instead of only the best
	// opportunity per symbol.
	AllPerSymbol bool `json:"all_per_symbol"`
}

// Validate fails fast on unusable filter configuration
func (f ScanFilters) Validate() error {
	if f.MaxDistancePercent <= 0 {
		return fmt.Errorf("max_distance_percent must be positive, got %.4f", f.MaxDistancePercent)
	}
	if f.MinStrength < 0 || f.MinStrength > 100 {
		return fmt.Errorf("min_strength must be in [0,100], got %.4f", f.MinStrength)
	}
	if f.MinRating < 0 || f.MinRating > 100 {
		return fmt.Errorf("min_rating must be in [0,100], got %.4f", f.MinRating)
	}
	return nil
}

// ScanSummary aggregates one scan cycle across all symbols
type ScanSummary struct {
	ScanID         string        `json:"scan_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	SymbolsScanned int           `json:"symbols_scanned"`
	SymbolsSkipped int           `json:"symbols_skipped"`
	Results        []ScanResult  `json:"results"`
	Errors         []string      `json:"errors,omitempty"`
}

// Config holds scanner configuration
type Config struct {
	Enabled      bool           `json:"enabled"`
	ScanInterval time.Duration  `json:"scan_interval"`
	WorkerCount  int            `json:"worker_count"`
	Direction    zones.ZoneType `json:"direction"` // DEMAND, SUPPLY or "" for both
	Filters      ScanFilters    `json:"filters"`
}
