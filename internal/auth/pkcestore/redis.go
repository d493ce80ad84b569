package pkcestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

const redisKeyPrefix = "vora:pkce:"

// RedisStore keeps pending login sessions in redis so any instance can
// serve the callback. Expiry rides on redis TTLs, no sweeping needed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed store and verifies connectivity.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Save records the session under state for at most ttl.
func (s *RedisStore) Save(ctx context.Context, state string, session Session, ttl time.Duration) error {
	session.ExpiresAt = time.Now().Add(ttl)
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode pkce session: %w", err)
	}
	if err := s.client.WithContext(ctx).Set(redisKeyPrefix+state, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save pkce session: %w", err)
	}
	return nil
}

// Get returns the session for state.
func (s *RedisStore) Get(ctx context.Context, state string) (Session, bool, error) {
	data, err := s.client.WithContext(ctx).Get(redisKeyPrefix + state).Bytes()
	if err == redis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to load pkce session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, false, fmt.Errorf("failed to decode pkce session: %w", err)
	}
	// Redis drops keys on its own TTLs, but a ttl<=0 save never gets one,
	// so the deadline is enforced here as well.
	if session.expired(time.Now()) {
		s.client.WithContext(ctx).Del(redisKeyPrefix + state)
		return Session{}, false, nil
	}
	return session, true, nil
}

// Delete removes the state. Deleting an absent state is not an error.
func (s *RedisStore) Delete(ctx context.Context, state string) error {
	if err := s.client.WithContext(ctx).Del(redisKeyPrefix + state).Err(); err != nil {
		return fmt.Errorf("failed to delete pkce session: %w", err)
	}
	return nil
}

// Count reports how many pending logins are currently held. Used for the
// pending-logins gauge, so a scan at scrape frequency is acceptable.
func (s *RedisStore) Count() int {
	keys, err := s.client.Keys(redisKeyPrefix + "*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
