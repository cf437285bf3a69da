package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"zone-scanner-bot/config"
	"zone-scanner-bot/internal/cache"
	"zone-scanner-bot/internal/database"
	"zone-scanner-bot/internal/engine"
	"zone-scanner-bot/internal/feed"
	"zone-scanner-bot/internal/logging"
	"zone-scanner-bot/internal/market"
	"zone-scanner-bot/internal/scanner"
	"zone-scanner-bot/internal/tracker"
	"zone-scanner-bot/internal/zones"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSONFormat)
	logger.Info().Strs("watchlist", cfg.Watchlist).Str("timeframe", cfg.Timeframe).Msg("starting zone scanner")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunZoneMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	repo := database.NewZoneRepository(db)

	// Optional Redis cache for scan results
	var store scanner.SummaryStore
	if cfg.Redis.Enabled {
		scanCache, err := cache.NewScanCache(cfg.CacheConfig(), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize redis cache")
		}
		defer scanCache.Close()
		store = scanCache
	}

	// Market data
	client := feed.NewClient(cfg.FeedConfig(), logger)
	stream := feed.NewPriceStream(cfg.FeedConfig(), cfg.Watchlist, logger)
	stream.Start()
	defer stream.Stop()
	universe := feed.NewStaticUniverse(cfg.Watchlist)

	// Detection pipeline
	detector, err := zones.NewDetector(cfg.Detection, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid detection configuration")
	}
	scorer, err := zones.NewScorer(cfg.Scoring)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring configuration")
	}
	zoneEngine := engine.NewZoneEngine(detector, scorer, repo, logger)

	zoneTracker, err := tracker.NewZoneTracker(repo, cfg.Lifecycle, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid lifecycle configuration")
	}

	zoneScanner, err := scanner.NewScanner(repo, stream, universe, store, cfg.ScannerConfig(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scanner configuration")
	}
	zoneScanner.Start()
	defer zoneScanner.Stop()

	runCandleLoop(ctx, cfg, client, zoneEngine, zoneTracker, logger)

	logger.Info().Msg("shutting down")
}

// runCandleLoop polls for new candles, runs detection over the refreshed
// series and feeds each newly closed candle through the lifecycle tracker.
func runCandleLoop(
	ctx context.Context,
	cfg *config.Config,
	candles market.CandleProvider,
	zoneEngine *engine.ZoneEngine,
	zoneTracker *tracker.ZoneTracker,
	logger zerolog.Logger,
) {
	interval := time.Duration(cfg.PollIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProcessed := make(map[string]int64)

	process := func() {
		for _, symbol := range cfg.Watchlist {
			series, err := candles.GetKlines(symbol, cfg.Timeframe, cfg.Lookback)
			if err != nil {
				logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to fetch candles")
				continue
			}
			if len(series) < 2 {
				continue
			}

			// The final kline is still forming; detection and tracking see
			// closed bars only
			closedSeries := series[:len(series)-1]

			if _, err := zoneEngine.ProcessSeries(ctx, symbol, cfg.Timeframe, closedSeries); err != nil {
				logger.Error().Err(err).Str("symbol", symbol).Msg("detection pass failed")
			}

			closed := closedSeries[len(closedSeries)-1]
			if closed.CloseTime <= lastProcessed[symbol] {
				continue
			}
			if _, err := zoneTracker.ProcessCandle(ctx, symbol, closed); err != nil {
				logger.Error().Err(err).Str("symbol", symbol).Msg("lifecycle update failed")
				continue
			}
			lastProcessed[symbol] = closed.CloseTime
		}
	}

	process()
	for {
		select {
		case <-ticker.C:
			process()
		case <-ctx.Done():
			return
		}
	}
}
