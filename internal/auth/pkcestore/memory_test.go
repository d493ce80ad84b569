package pkcestore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	session := Session{Provider: "google", CodeVerifier: "v", Nonce: "n"}
	if err := s.Save(ctx, "state1", session, time.Minute); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, found, err := s.Get(ctx, "state1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !found {
		t.Fatal("expected to find the session")
	}
	if got.Provider != "google" || got.CodeVerifier != "v" || got.Nonce != "n" {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestMemoryStoreUnknownState(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()

	_, found, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	s.Save(ctx, "state1", Session{Provider: "google"}, time.Minute)
	if err := s.Delete(ctx, "state1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, found, _ := s.Get(ctx, "state1"); found {
		t.Error("expected deleted state to be gone")
	}

	// Deleting again is not an error.
	if err := s.Delete(ctx, "state1"); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
}

func TestMemoryStoreZeroTTLExpiresImmediately(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	s.Save(ctx, "state1", Session{Provider: "google"}, 0)

	if _, found, _ := s.Get(ctx, "state1"); found {
		t.Error("expected ttl=0 entry to be expired on read")
	}
}

func TestMemoryStoreExpiryOnRead(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	s.Save(ctx, "state1", Session{Provider: "google"}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, found, _ := s.Get(ctx, "state1"); found {
		t.Error("expected expired entry to be invisible before the sweep runs")
	}
	if s.Len() != 0 {
		t.Errorf("expected read to evict the expired entry, Len=%d", s.Len())
	}
}

func TestMemoryStoreCount(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	s.Save(ctx, "live1", Session{Provider: "google"}, time.Hour)
	s.Save(ctx, "live2", Session{Provider: "facebook"}, time.Hour)
	s.Save(ctx, "dead", Session{Provider: "google"}, 0)

	if got := s.Count(); got != 2 {
		t.Errorf("expected Count to skip expired entries, got %d", got)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	s.Save(ctx, "old", Session{Provider: "google"}, 5*time.Millisecond)
	s.Save(ctx, "live", Session{Provider: "facebook"}, time.Hour)

	time.Sleep(60 * time.Millisecond)

	if s.Len() != 1 {
		t.Errorf("expected sweep to leave one entry, got %d", s.Len())
	}
	if _, found, _ := s.Get(ctx, "live"); !found {
		t.Error("expected live entry to survive the sweep")
	}
}

func TestMemoryStoreCloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	if err := s.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("expected second close to be safe, got %v", err)
	}
}
