package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// releaseScript deletes the key only while it still holds our token. A
// holder whose lease ran out must not release the next holder's lock.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Retry pacing while waiting for a held lock.
const (
	firstRetry = 10 * time.Millisecond
	maxRetry   = 200 * time.Millisecond
)

// LockManager leases per-question locks with SET NX PX so replicas sharing
// one Redis serialise their mutations of a question.
type LockManager struct {
	rdb  *redis.Client
	wait time.Duration
}

// NewLockManager creates a LockManager. A held lock is retried for up to
// wait before Acquire gives up; zero fails immediately.
func NewLockManager(c *Client, wait time.Duration) *LockManager {
	return &LockManager{rdb: c.Underlying(), wait: wait}
}

// Acquire leases key for ttl. The returned release is idempotent and runs
// detached from ctx. It fails with domain.ErrLockHeld when the key stays
// held past the wait budget.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lk := "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(lm.wait)
	backoff := firstRetry

	for {
		ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: lock %s: %w", key, err)
		}
		if ok {
			break
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
		}
		t := time.NewTimer(min(backoff, remaining))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("redis: lock %s: %w", key, ctx.Err())
		case <-t.C:
		}
		backoff = min(backoff*2, maxRetry)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
