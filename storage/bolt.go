package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"
	"golang.org/x/oauth2"

	"collectibles-market/models"
)

var (
	bucketCache    = []byte("cache")
	bucketCounters = []byte("counters")
	bucketPolicies = []byte("policies")
	bucketTokens   = []byte("tokens")
)

// BoltStore is an embedded key/value store backing the result cache, quota
// counters, the policy id cache and OAuth tokens. All data lives in a single
// file, so a single-node deployment needs no external process.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

type boltValue struct {
	Value     []byte    `json:"v"`
	ExpiresAt time.Time `json:"exp"`
}

// OpenBolt opens (or creates) a bolt database at path and ensures every
// bucket exists.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("bolt: create dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCache, bucketCounters, bucketPolicies, bucketTokens} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: create buckets: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// WithClock replaces the clock used for expiry. Tests only.
func (s *BoltStore) WithClock(now func() time.Time) *BoltStore {
	s.now = now
	return s
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get implements CacheStore. Expired values are reported as misses.
func (s *BoltStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCache).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var v boltValue
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if !s.now().Before(v.ExpiresAt) {
			return nil
		}
		out = v.Value
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt: cache get: %w", err)
	}
	return out, out != nil, nil
}

// Put implements CacheStore. The last write wins.
func (s *BoltStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(boltValue{Value: value, ExpiresAt: s.now().Add(ttl)})
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("bolt: cache put: %w", err)
	}
	return nil
}

// Sweep deletes expired cache entries and returns how many were removed.
func (s *BoltStore) Sweep(_ context.Context) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)
		var stale [][]byte
		now := s.now()
		err := b.ForEach(func(k, raw []byte) error {
			var v boltValue
			if err := json.Unmarshal(raw, &v); err != nil || !now.Before(v.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bolt: sweep: %w", err)
	}
	return removed, nil
}

// Incr implements CounterStore. A window starts at the first increment after
// the previous one expired. Values are 8-byte window-end unix nanos followed
// by an 8-byte count.
func (s *BoltStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	var count int64
	var resetAt time.Time
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		now := s.now()
		raw := b.Get([]byte(key))
		if len(raw) == 16 {
			resetAt = time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8])))
			count = int64(binary.BigEndian.Uint64(raw[8:]))
		}
		if raw == nil || !now.Before(resetAt) {
			resetAt = now.Add(window)
			count = 0
		}
		count++

		buf := make([]byte, 16)
		binary.BigEndian.PutUint64(buf[:8], uint64(resetAt.UnixNano()))
		binary.BigEndian.PutUint64(buf[8:], uint64(count))
		return b.Put([]byte(key), buf)
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("bolt: incr: %w", err)
	}
	return count, resetAt, nil
}

func policyKey(kind models.PolicyKind, name string) []byte {
	return []byte(string(kind) + "/" + name)
}

// GetPolicyID implements PolicyIDCache.
func (s *BoltStore) GetPolicyID(_ context.Context, kind models.PolicyKind, name string) (string, bool, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketPolicies).Get(policyKey(kind, name)); v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bolt: policy get: %w", err)
	}
	return id, id != "", nil
}

// PutPolicyID implements PolicyIDCache. Writing the same id again is a no-op.
func (s *BoltStore) PutPolicyID(_ context.Context, kind models.PolicyKind, name, id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPolicies)
		if string(b.Get(policyKey(kind, name))) == id {
			return nil
		}
		return b.Put(policyKey(kind, name), []byte(id))
	})
	if err != nil {
		return fmt.Errorf("bolt: policy put: %w", err)
	}
	return nil
}

// LoadToken implements TokenStore.
func (s *BoltStore) LoadToken(_ context.Context, userID string) (*oauth2.Token, error) {
	var tok *oauth2.Token
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTokens).Get([]byte(userID))
		if v == nil {
			return ErrNotFound
		}
		tok = &oauth2.Token{}
		return json.Unmarshal(v, tok)
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// SaveToken implements TokenStore.
func (s *BoltStore) SaveToken(_ context.Context, userID string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokens).Put([]byte(userID), data)
	})
}

// DeleteToken implements TokenStore. Deleting a missing token is not an error.
func (s *BoltStore) DeleteToken(_ context.Context, userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokens).Delete([]byte(userID))
	})
}
