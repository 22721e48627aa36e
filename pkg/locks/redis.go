package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTTL   = 15 * time.Second
	retryBackoff = 25 * time.Millisecond
)

// redisStore defines the operations used by Redis. DelIfEqual must compare
// and delete atomically on the server.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEqual(ctx context.Context, key, expected string) (bool, error)
	LockKey(scope, id string) string
}

// Redis implements Locker with SET NX PX and an owner token, so instances
// sharing one Redis serialize on the same keys. The TTL bounds how long a
// crashed holder can block others.
type Redis struct {
	client redisStore
	scope  string
	wait   time.Duration
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed locker for keys under scope.
func NewRedis(client redisStore, scope string, wait, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, scope: scope, wait: wait, ttl: ttl}, nil
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return noop, nil
	}

	owner := uuid.NewString()
	deadline := time.Now().Add(r.wait)
	held := make([]string, 0, len(keys))
	unlock := func() {
		// Release with a fresh context so a canceled request still frees its keys.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = r.release(releaseCtx, held[i], owner)
		}
		held = nil
	}

	for _, key := range keys {
		redisKey := r.client.LockKey(r.scope, key)
		for {
			ok, err := r.client.SetNX(ctx, redisKey, owner, r.ttl)
			if err != nil {
				unlock()
				return nil, fmt.Errorf("setnx: %w", err)
			}
			if ok {
				held = append(held, redisKey)
				break
			}
			if time.Now().Add(retryBackoff).After(deadline) {
				unlock()
				return nil, ErrNotAcquired
			}
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				unlock()
				return nil, ctx.Err()
			}
		}
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}

// release frees key only if the owner value still matches. A key that
// expired and was taken by another owner is left alone.
func (r *Redis) release(ctx context.Context, key, owner string) error {
	if _, err := r.client.DelIfEqual(ctx, key, owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
