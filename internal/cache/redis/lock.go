package redis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// unlockLua deletes a lock key only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua resets a lock's TTL only if it still holds the caller's token.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager with SET NX and token-checked
// release. A held lock is extended in the background every third of its TTL
// so long deployments do not lose it.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	extendSc *redis.Script
	logger   *slog.Logger
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client, logger *slog.Logger) *LockManager {
	return &LockManager{
		rdb:      c.rdb,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
		logger:   logger.With(slog.String("component", "redis_lock")),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// newToken identifies the holder: a random id plus the host and pid, so a
// stuck lock can be traced to the process that took it.
func newToken() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s@%s:%d", uuid.NewString(), host, os.Getpid())
}

// Acquire takes the lock for key. It returns domain.ErrLockHeld, naming the
// current holder, when another process holds it. The returned context is
// cancelled with cause domain.ErrLockLost when renewal finds the key gone or
// owned by someone else. The returned unlock stops the renewal and releases
// the lock; it is safe to call more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (context.Context, func(), error) {
	token := newToken()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		holder, _ := lm.rdb.Get(ctx, lk).Result()
		return nil, nil, fmt.Errorf("redis: lock %s: %w (holder %q)", key, domain.ErrLockHeld, holder)
	}

	lockCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lm.keepAlive(lk, token, ttl, stop, cancel)
	}()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cancel(nil)

			// The caller's context may already be cancelled.
			unlockCtx, cancelUnlock := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelUnlock()
			if err := lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err(); err != nil {
				lm.logger.Warn("release lock failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}
	return lockCtx, unlock, nil
}

func (lm *LockManager) keepAlive(lk, token string, ttl time.Duration, stop <-chan struct{}, lost context.CancelCauseFunc) {
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := lm.extendSc.Run(ctx, lm.rdb, []string{lk}, token, ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				lm.logger.Warn("extend lock failed", slog.String("key", lk), slog.String("error", err.Error()))
				continue
			}
			if n == 0 {
				lm.logger.Error("lock lost", slog.String("key", lk))
				lost(fmt.Errorf("%w: %s", domain.ErrLockLost, lk))
				return
			}
		}
	}
}
