// Package scanner ranks active zones across many instruments to surface
// the best current opportunities.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"zone-scanner-bot/internal/market"
	"zone-scanner-bot/internal/zones"
)

// SummaryStore receives completed scan summaries, e.g. a Redis cache.
type SummaryStore interface {
	StoreScan(ctx context.Context, summary *ScanSummary) error
}

// Scanner reads zones across instruments and ranks opportunities. It is
// read-only against the repository, so scans run fully in parallel and a
// failure on one symbol never aborts the rest.
type Scanner struct {
	repo     zones.ZoneRepository
	prices   market.PriceProvider
	universe market.UniverseProvider
	store    SummaryStore
	config   Config
	logger   zerolog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	lastScan *ScanSummary
}

// NewScanner creates a scanner. prices and universe are only required when
// the background loop is used; store may be nil.
func NewScanner(
	repo zones.ZoneRepository,
	prices market.PriceProvider,
	universe market.UniverseProvider,
	store SummaryStore,
	config Config,
	logger zerolog.Logger,
) (*Scanner, error) {
	if err := config.Filters.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan filters: %w", err)
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 5 * time.Minute
	}
	return &Scanner{
		repo:     repo,
		prices:   prices,
		universe: universe,
		store:    store,
		config:   config,
		logger:   logger.With().Str("component", "scanner").Logger(),
		stopChan: make(chan struct{}),
	}, nil
}

// ScanOpportunities ranks the active zones of the given symbols against the
// supplied current prices. Symbols missing from currentPrices are skipped,
// not failed; per-symbol repository errors are logged and the scan carries
// on best-effort. Results come back sorted by composite rating descending,
// ties broken by lower distance.
func (s *Scanner) ScanOpportunities(ctx context.Context, symbols []string, currentPrices map[string]float64, filters ScanFilters) ([]ScanResult, error) {
	if err := filters.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan filters: %w", err)
	}

	symbolChan := make(chan string, len(symbols))
	resultChan := make(chan []ScanResult, len(symbols))
	var wg sync.WaitGroup

	for i := 0; i < s.config.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				price, ok := currentPrices[symbol]
				if !ok {
					s.logger.Debug().Str("symbol", symbol).Msg("no current price, skipping symbol")
					continue
				}
				results, err := s.scanSymbol(ctx, symbol, price, filters)
				if err != nil {
					s.logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol scan failed")
					continue
				}
				resultChan <- results
			}
		}()
	}

	// Feed symbols; stop early when the caller cancels
	for _, symbol := range symbols {
		select {
		case symbolChan <- symbol:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(symbolChan)

	wg.Wait()
	close(resultChan)

	var all []ScanResult
	for results := range resultChan {
		all = append(all, results...)
	}
	RankResults(all)
	return all, nil
}

// scanSymbol fetches and rates a single symbol's active zones
func (s *Scanner) scanSymbol(ctx context.Context, symbol string, price float64, filters ScanFilters) ([]ScanResult, error) {
	active, err := s.repo.GetActiveZones(ctx, symbol, s.config.Direction, filters.MinStrength)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch zones: %w", err)
	}

	var qualified []ScanResult
	for _, zone := range active {
		if result, ok := EvaluateZone(*zone, price, filters); ok {
			qualified = append(qualified, result)
		}
	}

	if filters.AllPerSymbol {
		return qualified, nil
	}
	if best, ok := bestResult(qualified); ok {
		return []ScanResult{best}, nil
	}
	return nil, nil
}

// Start begins the background scan loop
func (s *Scanner) Start() {
	if !s.config.Enabled {
		s.logger.Info().Msg("zone scanner is disabled")
		return
	}

	s.wg.Add(1)
	go s.runScanLoop()
	s.logger.Info().Dur("interval", s.config.ScanInterval).Msg("zone scanner started")
}

// Stop gracefully shuts down the scan loop
func (s *Scanner) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// GetLastScan returns the most recent scan summary
func (s *Scanner) GetLastScan() *ScanSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastScan
}

func (s *Scanner) runScanLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately
	s.Scan(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Scan(context.Background())
		case <-s.stopChan:
			s.logger.Info().Msg("zone scanner stopped")
			return
		}
	}
}

// Scan executes one scan cycle: resolve the symbol universe, fetch current
// prices and rank every symbol's zones. Partial failures are collected into
// the summary rather than aborting the cycle.
func (s *Scanner) Scan(ctx context.Context) *ScanSummary {
	startTime := time.Now()
	summary := &ScanSummary{
		ScanID:    fmt.Sprintf("scan-%d", startTime.Unix()),
		StartTime: startTime,
	}

	symbols, err := s.universe.GetSymbols(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to resolve symbol universe")
		summary.Errors = append(summary.Errors, fmt.Sprintf("universe: %v", err))
		return s.finishScan(ctx, summary)
	}
	summary.SymbolsScanned = len(symbols)

	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		price, err := s.prices.GetCurrentPrice(symbol)
		if err != nil {
			summary.SymbolsSkipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", symbol, err))
			continue
		}
		prices[symbol] = price
	}

	results, err := s.ScanOpportunities(ctx, symbols, prices, s.config.Filters)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
	}
	summary.Results = results
	return s.finishScan(ctx, summary)
}

func (s *Scanner) finishScan(ctx context.Context, summary *ScanSummary) *ScanSummary {
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)

	s.mu.Lock()
	s.lastScan = summary
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.StoreScan(ctx, summary); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache scan summary")
		}
	}

	s.logger.Info().
		Str("scan_id", summary.ScanID).
		Dur("duration", summary.Duration).
		Int("symbols", summary.SymbolsScanned).
		Int("skipped", summary.SymbolsSkipped).
		Int("opportunities", len(summary.Results)).
		Msg("scan completed")
	return summary
}
