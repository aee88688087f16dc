package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "github.com/alanyoungcy/realityarb/internal/cache/redis"
	"github.com/alanyoungcy/realityarb/internal/cache/redis/redistest"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

func TestLockManager(t *testing.T) {
	client, mr := redistest.New(t)
	lm := rediscache.NewLockManager(client, 0)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "question:0x01", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "question:0x01", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, domain.KindState, domain.KindOf(err))

	// Other keys are independent.
	unlockOther, err := lm.Acquire(ctx, "question:0x02", time.Minute)
	require.NoError(t, err)
	unlockOther()

	unlock()
	unlock()

	unlock, err = lm.Acquire(ctx, "question:0x01", time.Minute)
	require.NoError(t, err)
	defer unlock()

	if mr != nil {
		assert.True(t, mr.Exists("lock:question:0x01"))
	}
}

func TestLockExpiredHolderCannotReleaseNextHolder(t *testing.T) {
	client, mr := redistest.New(t)
	if mr == nil {
		t.Skip("needs miniredis to fast-forward time")
	}
	lm := rediscache.NewLockManager(client, 0)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "q", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lm.Acquire(ctx, "q", time.Minute)
	require.NoError(t, err)
	defer fresh()

	stale()
	_, err = lm.Acquire(ctx, "q", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestLockManagerWaitsForRelease(t *testing.T) {
	client, _ := redistest.New(t)
	lm := rediscache.NewLockManager(client, 2*time.Second)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "question:0x03", time.Minute)
	require.NoError(t, err)
	time.AfterFunc(50*time.Millisecond, unlock)

	start := time.Now()
	next, err := lm.Acquire(ctx, "question:0x03", time.Minute)
	require.NoError(t, err)
	next()
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	cctx, cancel := context.WithCancel(ctx)
	held, err := lm.Acquire(ctx, "question:0x03", time.Minute)
	require.NoError(t, err)
	defer held()
	cancel()
	_, err = lm.Acquire(cctx, "question:0x03", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSignalBusPubSub(t *testing.T) {
	client, _ := redistest.New(t)
	bus := rediscache.NewSignalBus(client, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "ch:realitio:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "ch:realitio:LogNewAnswer", []byte(`{"n":1}`)))
	require.NoError(t, bus.Publish(ctx, "ch:other", []byte(`ignored`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"n":1}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	for range ch {
	}
}

func TestSignalBusStream(t *testing.T) {
	client, _ := redistest.New(t)
	bus := rediscache.NewSignalBus(client, 100)
	ctx := context.Background()

	msgs, err := bus.StreamRead(ctx, "events:realitio", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, "events:realitio", []byte(p)))
	}

	msgs, err = bus.StreamRead(ctx, "events:realitio", "0", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Payload))
	assert.Equal(t, "b", string(msgs[1].Payload))

	rest, err := bus.StreamRead(ctx, "events:realitio", msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", string(rest[0].Payload))
}

func TestRateLimiter(t *testing.T) {
	client, _ := redistest.New(t)
	rl := rediscache.NewRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "api:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "api:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "api:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
