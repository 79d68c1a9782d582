package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// HostLocker serializes runs against the same host.
// The engine itself is single-threaded; when an outer system may trigger
// several runs at once, it takes this lock around each run.
type HostLocker interface {
	// Lock attempts to acquire the lock for key (usually the host name).
	// It blocks until the lock is acquired or the context is canceled.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
