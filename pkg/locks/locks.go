// Package locks serializes work on named resources, such as the variants a
// booking touches, with a bounded wait.
package locks

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotAcquired is returned when a lock could not be taken within the wait.
var ErrNotAcquired = errors.New("lock not acquired")

// DefaultWait bounds how long Acquire blocks when no wait is configured.
const DefaultWait = 2 * time.Second

// Release frees every lock taken by one Acquire call. It is safe to call twice.
type Release func()

// Locker takes exclusive locks on a set of keys.
//
// Keys are deduplicated and locked in sorted order so two callers sharing
// keys cannot deadlock. Acquire either holds every key or none of them.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func noop() {}
