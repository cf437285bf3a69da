// Backfill runs one historical detection pass over the configured watchlist
// and persists the zones it finds, then exits. Useful for seeding a fresh
// database before starting the live process.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"zone-scanner-bot/config"
	"zone-scanner-bot/internal/database"
	"zone-scanner-bot/internal/engine"
	"zone-scanner-bot/internal/feed"
	"zone-scanner-bot/internal/logging"
	"zone-scanner-bot/internal/zones"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	lookback := flag.Int("lookback", 0, "override candle lookback")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load configuration")
	}
	if *lookback > 0 {
		cfg.Lookback = *lookback
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSONFormat)
	ctx := context.Background()

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunZoneMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	repo := database.NewZoneRepository(db)

	detector, err := zones.NewDetector(cfg.Detection, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid detection configuration")
	}
	scorer, err := zones.NewScorer(cfg.Scoring)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring configuration")
	}
	zoneEngine := engine.NewZoneEngine(detector, scorer, repo, logger)

	client := feed.NewClient(cfg.FeedConfig(), logger)

	total := 0
	for _, symbol := range cfg.Watchlist {
		candles, err := client.GetKlines(symbol, cfg.Timeframe, cfg.Lookback)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("failed to fetch candles")
			continue
		}

		created, err := zoneEngine.ProcessSeries(ctx, symbol, cfg.Timeframe, candles)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("backfill failed")
			continue
		}
		total += len(created)
		logger.Info().Str("symbol", symbol).Int("zones", len(created)).Msg("backfill pass done")
	}

	logger.Info().Int("total_zones", total).Msg("backfill completed")
}
