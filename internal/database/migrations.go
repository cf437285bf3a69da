package database

import (
	"context"
	"fmt"
	"log"
)

// RunZoneMigrations creates the zone and touch tables
func (db *DB) RunZoneMigrations(ctx context.Context) error {
	log.Println("Running zone database migrations...")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS zones (
			id UUID PRIMARY KEY,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			zone_type TEXT NOT NULL,
			price_low DOUBLE PRECISION NOT NULL,
			price_high DOUBLE PRECISION NOT NULL,
			formation_start TIMESTAMP WITH TIME ZONE NOT NULL,
			formation_end TIMESTAMP WITH TIME ZONE NOT NULL,
			impulse_move_pct DOUBLE PRECISION NOT NULL,
			volume_ratio DOUBLE PRECISION NOT NULL,
			strength_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'FRESH',
			test_count INT NOT NULL DEFAULT 0,
			last_tested_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,

			CHECK (price_low < price_high),
			CHECK (strength_score >= 0 AND strength_score <= 100),
			CHECK (test_count >= 0)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_zones_symbol_status ON zones(symbol, status)`,
		`CREATE INDEX IF NOT EXISTS idx_zones_strength ON zones(strength_score)`,

		`CREATE TABLE IF NOT EXISTS zone_touches (
			id BIGSERIAL PRIMARY KEY,
			zone_id UUID NOT NULL REFERENCES zones(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			touched_at TIMESTAMP WITH TIME ZONE NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			outcome TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_zone_touches_zone ON zone_touches(zone_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("zone migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Zone database migrations completed")
	return nil
}
