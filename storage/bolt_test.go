package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"collectibles-market/models"
	"collectibles-market/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBolt(t *testing.T) (*storage.BoltStore, *fakeClock) {
	t.Helper()
	s, err := storage.OpenBolt(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return s.WithClock(clock.now), clock
}

func TestBoltCacheExpiry(t *testing.T) {
	s, clock := newTestBolt(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, "k", []byte("v1"), time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("expected hit v1, got %q ok=%v err=%v", got, ok, err)
	}

	clock.advance(time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry must not be served at its expiry instant")
	}
}

func TestBoltCacheLastWriteWins(t *testing.T) {
	s, _ := newTestBolt(t)
	ctx := context.Background()

	_ = s.Put(ctx, "k", []byte("first"), time.Hour)
	_ = s.Put(ctx, "k", []byte("second"), time.Hour)

	got, _, _ := s.Get(ctx, "k")
	if string(got) != "second" {
		t.Fatalf("expected second, got %q", got)
	}
}

func TestBoltSweep(t *testing.T) {
	s, clock := newTestBolt(t)
	ctx := context.Background()

	_ = s.Put(ctx, "short", []byte("a"), time.Minute)
	_ = s.Put(ctx, "long", []byte("b"), time.Hour)
	clock.advance(10 * time.Minute)

	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if _, ok, _ := s.Get(ctx, "long"); !ok {
		t.Fatal("unexpired entry was swept")
	}
}

func TestBoltCounterWindow(t *testing.T) {
	s, clock := newTestBolt(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, _, err := s.Incr(ctx, "u1", time.Hour)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}

	clock.advance(time.Hour)
	got, reset, _ := s.Incr(ctx, "u1", time.Hour)
	if got != 1 {
		t.Fatalf("expected window reset to 1, got %d", got)
	}
	if !reset.Equal(clock.t.Add(time.Hour)) {
		t.Fatalf("unexpected reset time %v", reset)
	}
}

func TestBoltPolicyIDs(t *testing.T) {
	s, _ := newTestBolt(t)
	ctx := context.Background()

	if _, ok, _ := s.GetPolicyID(ctx, models.PolicyPayment, "pay-immediate"); ok {
		t.Fatal("expected no cached id")
	}
	if err := s.PutPolicyID(ctx, models.PolicyPayment, "pay-immediate", "P1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutPolicyID(ctx, models.PolicyPayment, "pay-immediate", "P1"); err != nil {
		t.Fatalf("repeat put: %v", err)
	}
	id, ok, _ := s.GetPolicyID(ctx, models.PolicyPayment, "pay-immediate")
	if !ok || id != "P1" {
		t.Fatalf("expected P1, got %q", id)
	}
	if _, ok, _ := s.GetPolicyID(ctx, models.PolicyReturn, "pay-immediate"); ok {
		t.Fatal("kinds must not share a namespace")
	}
}

func TestBoltTokens(t *testing.T) {
	s, _ := newTestBolt(t)
	ctx := context.Background()

	if _, err := s.LoadToken(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := s.SaveToken(ctx, "u1", tok); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadToken(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RefreshToken != "r" || !got.Expiry.Equal(tok.Expiry) {
		t.Fatalf("token mismatch: %+v", got)
	}

	if err := s.DeleteToken(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.LoadToken(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
