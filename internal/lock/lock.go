// Package lock serializes runs that share a root entity.
//
// Runs for the same root are already safe to interleave: every write goes
// through the origin-keyed upsert. A Locker only makes the interleaving
// deterministic (one run per root at a time), in-process with Local or
// across replicas with Redis.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockAcquire is returned when the backend fails while taking a lock.
// Context cancellation is returned as the context's own error.
var ErrLockAcquire = errors.New("failed to acquire lock")

// UnlockFunc releases a lock. It is safe to call more than once.
type UnlockFunc func(ctx context.Context) error

// Locker takes an exclusive lock on key.
//
// Lock blocks until the lock is held or ctx is done. ttl bounds how long a
// crashed holder can keep the lock; backends without expiry ignore it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// Local is an in-process Locker.
//
// Thread-safety: All methods are safe for concurrent use.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{} // closed on release
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]chan struct{})}
}

// Lock implements Locker. ttl is ignored: a holder in the same process
// cannot disappear without releasing.
func (l *Local) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	for {
		l.mu.Lock()
		released, busy := l.held[key]
		if !busy {
			released = make(chan struct{})
			l.held[key] = released
			l.mu.Unlock()

			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(released)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-released:
		}
	}
}

// Held reports whether key is currently locked.
func (l *Local) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
