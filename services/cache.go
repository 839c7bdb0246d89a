package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"collectibles-market/models"
	"collectibles-market/storage"
	"collectibles-market/utils"
)

// DefaultCacheTTL is how long a pricing result is served before a re-fetch.
const DefaultCacheTTL = 24 * time.Hour

// CacheKey derives the cache key of a lookup from the normalised identity of
// the item, the purpose and the search mode. Two items that differ only in
// letter case or spacing share a key; different purposes never do. Raw
// lookups search on condition, so it is part of their key.
func CacheKey(item models.Item, purpose models.Purpose, mode models.SearchMode) string {
	condition := ""
	if purpose == models.PurposeRaw {
		condition = keyPart(item.Condition)
	}
	parts := []string{
		keyPart(item.Name),
		keyPart(item.Year),
		keyPart(item.Series),
		normaliseNumber(item.Number),
		keyPart(item.Variant),
		normaliseSerial(item.SerialNumber),
		keyPart(item.Category),
		condition,
		strings.ToLower(string(purpose)),
		string(mode),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "pricing:" + hex.EncodeToString(sum[:])
}

func keyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ResultCache stores pricing results in a CacheStore. Expiry is checked
// against its own clock too, so an entry is never served past ExpiresAt even
// when the store is lax about it.
type ResultCache struct {
	store  storage.CacheStore
	ttl    time.Duration
	now    func() time.Time
	logger *utils.Logger
}

func NewResultCache(store storage.CacheStore, ttl time.Duration, logger *utils.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{store: store, ttl: ttl, now: time.Now, logger: logger}
}

// WithClock replaces the clock used for expiry checks. Tests only.
func (c *ResultCache) WithClock(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

// Get decodes the entry for key into dst. It reports false on absence,
// expiry or an undecodable entry.
func (c *ResultCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache: get: %w", err)
	}
	if !ok {
		return false, nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("[cache] Discarding undecodable entry %s: %v", key, err)
		return false, nil
	}
	if entry.Expired(c.now()) {
		return false, nil
	}
	if err := json.Unmarshal(entry.Payload, dst); err != nil {
		c.logger.Warn("[cache] Discarding entry %s with bad payload: %v", key, err)
		return false, nil
	}
	return true, nil
}

// Put replaces the entry for key. A zero ttl uses the cache default.
func (c *ResultCache) Put(ctx context.Context, key string, payload any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache: encode payload: %w", err)
	}
	entry, err := json.Marshal(models.CacheEntry{
		Key:       key,
		Payload:   body,
		ExpiresAt: c.now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if err := c.store.Put(ctx, key, entry, ttl); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}
