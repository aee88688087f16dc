package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

type batchRecorder struct {
	mu      sync.Mutex
	events  []domain.EventType
	flushes int
	seen    chan struct{}
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{seen: make(chan struct{}, 64)}
}

func (r *batchRecorder) Name() string { return "recorder" }

func (r *batchRecorder) HandleEvent(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.Type)
	return nil
}

func (r *batchRecorder) Flush(context.Context) error {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
	r.seen <- struct{}{}
	return nil
}

func (r *batchRecorder) state() ([]domain.EventType, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.EventType(nil), r.events...), r.flushes
}

func batch(types ...domain.EventType) []domain.Event {
	out := make([]domain.Event, len(types))
	for i, t := range types {
		out[i] = domain.Event{Type: t, QuestionID: common.HexToHash("0x01")}
	}
	return out
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewEventDispatcher(discardLogger())
	queued := newBatchRecorder()
	d.Subscribe(queued, 4)

	var inline []domain.EventType
	d.Inline(SubscriberFunc{ID: "inline", Fn: func(_ context.Context, ev domain.Event) error {
		inline = append(inline, ev.Type)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Dispatch(ctx, batch(domain.EventNewQuestion))
	d.Dispatch(ctx, batch(domain.EventNewAnswer, domain.EventNewAnswer))
	d.Dispatch(ctx, nil)

	// Inline subscribers have run by the time Dispatch returns.
	assert.Equal(t, []domain.EventType{domain.EventNewQuestion, domain.EventNewAnswer, domain.EventNewAnswer}, inline)

	for i := 0; i < 2; i++ {
		select {
		case <-queued.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("queued subscriber did not flush")
		}
	}
	events, flushes := queued.state()
	assert.Equal(t, inline, events)
	assert.Equal(t, 2, flushes, "one flush per batch")

	cancel()
	require.NoError(t, <-done)
}

func TestDispatcherDrainsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewEventDispatcher(discardLogger())
	queued := newBatchRecorder()
	d.Subscribe(queued, 8)

	d.Dispatch(context.Background(), batch(domain.EventClaim))
	d.Dispatch(context.Background(), batch(domain.EventWithdraw))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	events, flushes := queued.state()
	assert.Equal(t, []domain.EventType{domain.EventClaim, domain.EventWithdraw}, events)
	assert.Equal(t, 2, flushes)
}

func TestDispatcherFullQueueGivesUpWithContext(t *testing.T) {
	d := NewEventDispatcher(discardLogger())
	queued := newBatchRecorder()
	d.Subscribe(queued, 1)

	d.Dispatch(context.Background(), batch(domain.EventNewQuestion))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Dispatch(ctx, batch(domain.EventNewAnswer))
	assert.Less(t, time.Since(start), time.Second)
}

func TestDispatcherSubscriberErrorDoesNotStopOthers(t *testing.T) {
	d := NewEventDispatcher(discardLogger())
	var got int
	d.Inline(SubscriberFunc{ID: "broken", Fn: func(context.Context, domain.Event) error {
		return assert.AnError
	}})
	d.Inline(SubscriberFunc{ID: "counter", Fn: func(context.Context, domain.Event) error {
		got++
		return nil
	}})

	d.Dispatch(context.Background(), batch(domain.EventNewQuestion, domain.EventNewAnswer))
	assert.Equal(t, 2, got)
}
