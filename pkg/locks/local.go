package locks

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process keyed mutex. It serializes callers within one
// process only.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal builds an in-process locker that waits at most wait per Acquire.
func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Local{wait: wait, slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return noop, nil
	}

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(keys))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = nil
	}

	for _, key := range keys {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			unlock()
			return nil, ErrNotAcquired
		case <-ctx.Done():
			unlock()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}
