package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"zone-scanner-bot/internal/zones"
)

// ZoneRepository provides PostgreSQL-backed zone persistence
type ZoneRepository struct {
	db *DB
}

// NewZoneRepository creates a new zone repository
func NewZoneRepository(db *DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// CreateZone inserts a new zone
func (r *ZoneRepository) CreateZone(ctx context.Context, zone *zones.Zone) error {
	if zone.PriceLow >= zone.PriceHigh {
		return fmt.Errorf("invalid zone geometry: price_low %.8f >= price_high %.8f", zone.PriceLow, zone.PriceHigh)
	}
	if zone.ID == "" {
		zone.ID = uuid.NewString()
	}
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO zones (id, symbol, timeframe, zone_type, price_low, price_high,
		                   formation_start, formation_end, impulse_move_pct, volume_ratio,
		                   strength_score, status, test_count, last_tested_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		zone.ID, zone.Symbol, zone.Timeframe, zone.Type, zone.PriceLow, zone.PriceHigh,
		zone.FormationStart, zone.FormationEnd, zone.ImpulseMovePct, zone.VolumeRatio,
		zone.StrengthScore, zone.Status, zone.TestCount, zone.LastTestedAt, zone.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create zone: %w", err)
	}
	return nil
}

// GetZoneByID retrieves a zone by id
func (r *ZoneRepository) GetZoneByID(ctx context.Context, id string) (*zones.Zone, error) {
	query := zoneSelect + ` WHERE id = $1`
	zone, err := scanZone(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, zones.ErrZoneNotFound
		}
		return nil, fmt.Errorf("failed to get zone %s: %w", id, err)
	}
	return zone, nil
}

// GetActiveZones returns non-BROKEN zones for a symbol, optionally filtered
// by type and minimum strength, strongest first
func (r *ZoneRepository) GetActiveZones(ctx context.Context, symbol string, zoneType zones.ZoneType, minStrength float64) ([]*zones.Zone, error) {
	query := zoneSelect + `
		WHERE symbol = $1 AND status != 'BROKEN'
		  AND ($2 = '' OR zone_type = $2)
		  AND strength_score >= $3
		ORDER BY strength_score DESC, created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, string(zoneType), minStrength)
	if err != nil {
		return nil, fmt.Errorf("failed to query active zones for %s: %w", symbol, err)
	}
	defer rows.Close()

	var result []*zones.Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone row: %w", err)
		}
		result = append(result, zone)
	}
	return result, rows.Err()
}

// UpdateZoneLifecycle persists the mutable lifecycle fields in a single
// atomic statement. Status only moves forward along
// FRESH -> TESTED -> WEAK -> BROKEN and test_count never decreases; a
// concurrent writer cannot undo either.
func (r *ZoneRepository) UpdateZoneLifecycle(ctx context.Context, id string, status zones.ZoneStatus, testCount int, lastTestedAt *time.Time) error {
	query := `
		UPDATE zones
		SET status = CASE
				WHEN array_position(ARRAY['FRESH','TESTED','WEAK','BROKEN'], $2::text)
				   > array_position(ARRAY['FRESH','TESTED','WEAK','BROKEN'], status)
				THEN $2::text ELSE status END,
		    test_count = GREATEST(test_count, $3),
		    last_tested_at = $4
		WHERE id = $1 AND status != 'BROKEN'
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, status, testCount, lastTestedAt)
	if err != nil {
		return fmt.Errorf("failed to update zone lifecycle %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the zone is gone or it already reached the terminal state
		if _, err := r.GetZoneByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RecordTouch appends a touch event to the audit trail
func (r *ZoneRepository) RecordTouch(ctx context.Context, touch *zones.ZoneTouch) error {
	query := `
		INSERT INTO zone_touches (zone_id, symbol, touched_at, price, outcome)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query, touch.ZoneID, touch.Symbol, touch.TouchedAt, touch.Price, touch.Outcome)
	if err != nil {
		return fmt.Errorf("failed to record zone touch: %w", err)
	}
	return nil
}

// GetTouches returns the touch history for a zone, oldest first
func (r *ZoneRepository) GetTouches(ctx context.Context, zoneID string) ([]*zones.ZoneTouch, error) {
	query := `
		SELECT zone_id, symbol, touched_at, price, outcome
		FROM zone_touches
		WHERE zone_id = $1
		ORDER BY touched_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query touches for zone %s: %w", zoneID, err)
	}
	defer rows.Close()

	var touches []*zones.ZoneTouch
	for rows.Next() {
		t := &zones.ZoneTouch{}
		if err := rows.Scan(&t.ZoneID, &t.Symbol, &t.TouchedAt, &t.Price, &t.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan touch row: %w", err)
		}
		touches = append(touches, t)
	}
	return touches, rows.Err()
}

const zoneSelect = `
	SELECT id, symbol, timeframe, zone_type, price_low, price_high,
	       formation_start, formation_end, impulse_move_pct, volume_ratio,
	       strength_score, status, test_count, last_tested_at, created_at
	FROM zones
`

func scanZone(row pgx.Row) (*zones.Zone, error) {
	zone := &zones.Zone{}
	err := row.Scan(
		&zone.ID, &zone.Symbol, &zone.Timeframe, &zone.Type, &zone.PriceLow, &zone.PriceHigh,
		&zone.FormationStart, &zone.FormationEnd, &zone.ImpulseMovePct, &zone.VolumeRatio,
		&zone.StrengthScore, &zone.Status, &zone.TestCount, &zone.LastTestedAt, &zone.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return zone, nil
}
