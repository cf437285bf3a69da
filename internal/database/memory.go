package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"zone-scanner-bot/internal/zones"
)

// MemoryZoneRepository is an in-memory zones.ZoneRepository. It backs tests
// and serves as the reference implementation of the repository contract,
// including the monotonicity guarantees of lifecycle updates.
type MemoryZoneRepository struct {
	mu      sync.RWMutex
	zones   map[string]*zones.Zone
	touches map[string][]*zones.ZoneTouch
}

// NewMemoryZoneRepository creates an empty in-memory repository
func NewMemoryZoneRepository() *MemoryZoneRepository {
	return &MemoryZoneRepository{
		zones:   make(map[string]*zones.Zone),
		touches: make(map[string][]*zones.ZoneTouch),
	}
}

// CreateZone stores a copy of the zone
func (r *MemoryZoneRepository) CreateZone(ctx context.Context, zone *zones.Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if zone.ID == "" {
		zone.ID = uuid.NewString()
	}
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = time.Now().UTC()
	}
	stored := *zone
	r.zones[zone.ID] = &stored
	return nil
}

// GetZoneByID returns a copy of the stored zone
func (r *MemoryZoneRepository) GetZoneByID(ctx context.Context, id string) (*zones.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zone, ok := r.zones[id]
	if !ok {
		return nil, zones.ErrZoneNotFound
	}
	copied := *zone
	return &copied, nil
}

// GetActiveZones returns non-BROKEN zones for a symbol, strongest first
func (r *MemoryZoneRepository) GetActiveZones(ctx context.Context, symbol string, zoneType zones.ZoneType, minStrength float64) ([]*zones.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*zones.Zone
	for _, zone := range r.zones {
		if zone.Symbol != symbol || zone.Status == zones.StatusBroken {
			continue
		}
		if zoneType != "" && zone.Type != zoneType {
			continue
		}
		if zone.StrengthScore < minStrength {
			continue
		}
		copied := *zone
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StrengthScore > result[j].StrengthScore
	})
	return result, nil
}

// statusRank orders lifecycle states along the only permitted direction
var statusRank = map[zones.ZoneStatus]int{
	zones.StatusFresh:  0,
	zones.StatusTested: 1,
	zones.StatusWeak:   2,
	zones.StatusBroken: 3,
}

// UpdateZoneLifecycle mutates the lifecycle fields under the write lock.
// Status only moves forward, BROKEN stays terminal and test_count never
// decreases, whatever the caller passes.
func (r *MemoryZoneRepository) UpdateZoneLifecycle(ctx context.Context, id string, status zones.ZoneStatus, testCount int, lastTestedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	zone, ok := r.zones[id]
	if !ok {
		return zones.ErrZoneNotFound
	}
	if zone.Status == zones.StatusBroken {
		return nil
	}
	if statusRank[status] > statusRank[zone.Status] {
		zone.Status = status
	}
	if testCount > zone.TestCount {
		zone.TestCount = testCount
	}
	zone.LastTestedAt = lastTestedAt
	return nil
}

// RecordTouch appends a touch event
func (r *MemoryZoneRepository) RecordTouch(ctx context.Context, touch *zones.ZoneTouch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *touch
	r.touches[touch.ZoneID] = append(r.touches[touch.ZoneID], &copied)
	return nil
}

// GetTouches returns the touch history for a zone in insertion order
func (r *MemoryZoneRepository) GetTouches(ctx context.Context, zoneID string) ([]*zones.ZoneTouch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	touches := make([]*zones.ZoneTouch, len(r.touches[zoneID]))
	copy(touches, r.touches[zoneID])
	return touches, nil
}
