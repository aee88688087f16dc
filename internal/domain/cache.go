package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LockManager provides distributed locking. Acquire fails with ErrLockHeld
// when another holder owns key; the returned unlock is safe to call once the
// lease has already expired.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// QuestionLockKey is the lock guarding mutations of one question.
func QuestionLockKey(id common.Hash) string {
	return "question:" + id.Hex()
}

// StreamMessage is one entry of a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus fans published events out to live subscribers and keeps a
// replayable stream. Channels ending in "*" subscribe by pattern.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter admits at most limit requests per window for a key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
