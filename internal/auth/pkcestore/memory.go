package pkcestore

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the memory store evicts expired entries.
const DefaultSweepInterval = 5 * time.Minute

// MemoryStore is a mutex-guarded in-process store. Suitable for a single
// instance; multi-instance deployments should use the redis store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Session

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a memory store and starts its sweep goroutine.
// A non-positive sweepInterval falls back to the default.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryStore{
		entries: make(map[string]Session),
		stop:    make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

// Save records the session under state for at most ttl.
func (s *MemoryStore) Save(ctx context.Context, state string, session Session, ttl time.Duration) error {
	session.ExpiresAt = time.Now().Add(ttl)
	s.mu.Lock()
	s.entries[state] = session
	s.mu.Unlock()
	return nil
}

// Get returns the session for state. Expiry is checked on read, so entries
// are never served stale regardless of sweep timing.
func (s *MemoryStore) Get(ctx context.Context, state string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.entries[state]
	if !ok {
		return Session{}, false, nil
	}
	if session.expired(time.Now()) {
		delete(s.entries, state)
		return Session{}, false, nil
	}
	return session, true, nil
}

// Delete removes the state. Deleting an absent state is not an error.
func (s *MemoryStore) Delete(ctx context.Context, state string) error {
	s.mu.Lock()
	delete(s.entries, state)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Count reports how many pending logins are live right now.
func (s *MemoryStore) Count() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, session := range s.entries {
		if !session.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for state, session := range s.entries {
				if !session.ExpiresAt.After(now) {
					delete(s.entries, state)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
