package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking. The returned context is derived
// from ctx and is cancelled with cause ErrLockLost if the lock is taken away
// while held. Work guarded by the lock should run under that context.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lockCtx context.Context, unlock func(), err error)
}
