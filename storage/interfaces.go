package storage

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"collectibles-market/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrLotConflict is returned when a lot member already belongs to another
// active lot listing.
var ErrLotConflict = errors.New("item already belongs to an active lot listing")

// CacheStore is a key-value store with expiry. It is never authoritative.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CounterStore counts events per key inside a fixed window.
type CounterStore interface {
	// Incr adds one to key and returns the new count and when the current
	// window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// PolicyIDCache remembers the remote id resolved for a policy name.
type PolicyIDCache interface {
	GetPolicyID(ctx context.Context, kind models.PolicyKind, name string) (string, bool, error)
	PutPolicyID(ctx context.Context, kind models.PolicyKind, name, id string) error
}

// TokenStore persists marketplace OAuth tokens per user.
type TokenStore interface {
	LoadToken(ctx context.Context, userID string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error
	DeleteToken(ctx context.Context, userID string) error
}

// RecordStore persists listing records through their lifecycle.
type RecordStore interface {
	// Save inserts or replaces the record with the same ID.
	Save(ctx context.Context, rec *models.ListingRecord) error
	Get(ctx context.Context, id string) (*models.ListingRecord, error)
	ListByItem(ctx context.Context, itemRef string) ([]*models.ListingRecord, error)
	// ListOrphans returns records stuck before publication and last updated
	// before olderThan.
	ListOrphans(ctx context.Context, olderThan time.Time) ([]*models.ListingRecord, error)
	// ActivateLot saves rec and claims every member item for it in one
	// transaction. It fails with ErrLotConflict if a member is already claimed.
	ActivateLot(ctx context.Context, rec *models.ListingRecord) error
	// ReleaseLot saves rec and frees its member items.
	ReleaseLot(ctx context.Context, rec *models.ListingRecord) error
	Close() error
}

// CompsSink records the comparables behind a price estimate.
type CompsSink interface {
	WriteComps(ctx context.Context, result *models.PricingResult) error
	Close() error
}
