package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"collectibles-market/models"
)

// MemoryCache is an in-process CacheStore.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]boltValue
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]boltValue), now: time.Now}
}

// WithClock replaces the clock used for expiry. Tests only.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	if !ok || !c.now().Before(v.ExpiresAt) {
		return nil, false, nil
	}
	return v.Value, true, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = boltValue{Value: append([]byte(nil), value...), ExpiresAt: c.now().Add(ttl)}
	return nil
}

// MemoryCounter is an in-process CounterStore.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]memoryWindow), now: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.count++
	c.windows[key] = w
	return w.count, w.resetAt, nil
}

// MemoryPolicyIDs is an in-process PolicyIDCache.
type MemoryPolicyIDs struct {
	mu  sync.RWMutex
	ids map[string]string
}

func NewMemoryPolicyIDs() *MemoryPolicyIDs {
	return &MemoryPolicyIDs{ids: make(map[string]string)}
}

func (m *MemoryPolicyIDs) GetPolicyID(_ context.Context, kind models.PolicyKind, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[string(policyKey(kind, name))]
	return id, ok, nil
}

func (m *MemoryPolicyIDs) PutPolicyID(_ context.Context, kind models.PolicyKind, name, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[string(policyKey(kind, name))] = id
	return nil
}

// MemoryRecords is an in-process RecordStore.
type MemoryRecords struct {
	mu      sync.RWMutex
	records map[string]models.ListingRecord
	lots    map[string]string // item ref -> active lot record id
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		records: make(map[string]models.ListingRecord),
		lots:    make(map[string]string),
	}
}

func (m *MemoryRecords) Save(_ context.Context, rec *models.ListingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *MemoryRecords) Get(_ context.Context, id string) (*models.ListingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(&rec)
	return &out, nil
}

func (m *MemoryRecords) ListByItem(_ context.Context, itemRef string) ([]*models.ListingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ListingRecord
	for _, rec := range m.records {
		for _, ref := range rec.ItemRefs {
			if ref == itemRef {
				r := cloneRecord(&rec)
				out = append(out, &r)
				break
			}
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *MemoryRecords) ListOrphans(_ context.Context, olderThan time.Time) ([]*models.ListingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ListingRecord
	for _, rec := range m.records {
		if rec.Status.Orphanable() && rec.UpdatedAt.Before(olderThan) {
			r := cloneRecord(&rec)
			out = append(out, &r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *MemoryRecords) ActivateLot(_ context.Context, rec *models.ListingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range rec.ItemRefs {
		if owner, ok := m.lots[ref]; ok && owner != rec.ID {
			return ErrLotConflict
		}
	}
	for _, ref := range rec.ItemRefs {
		m.lots[ref] = rec.ID
	}
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *MemoryRecords) ReleaseLot(_ context.Context, rec *models.ListingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ref, owner := range m.lots {
		if owner == rec.ID {
			delete(m.lots, ref)
		}
	}
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

// ActiveLot returns the id of the active lot claiming itemRef.
func (m *MemoryRecords) ActiveLot(itemRef string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.lots[itemRef]
	return id, ok
}

func (m *MemoryRecords) Close() error { return nil }

func cloneRecord(rec *models.ListingRecord) models.ListingRecord {
	out := *rec
	out.ItemRefs = append([]string(nil), rec.ItemRefs...)
	return out
}

func sortRecords(recs []*models.ListingRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
