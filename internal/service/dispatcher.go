// Package service wires the oracle contracts to the outside world: it runs
// every mutation through the chain sequencer and fans the committed events
// out to indexers, publishers and archivers.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

const (
	defaultQueueSize = 256
	drainTimeout     = 5 * time.Second
)

// Subscriber consumes committed events.
type Subscriber interface {
	Name() string
	HandleEvent(ctx context.Context, ev domain.Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc struct {
	ID string
	Fn func(ctx context.Context, ev domain.Event) error
}

func (s SubscriberFunc) Name() string { return s.ID }

func (s SubscriberFunc) HandleEvent(ctx context.Context, ev domain.Event) error {
	return s.Fn(ctx, ev)
}

// Flusher is implemented by subscribers that act once per committed call
// rather than once per event. Flush runs after the last event of each
// dispatched batch.
type Flusher interface {
	Flush(ctx context.Context) error
}

type queue struct {
	sub Subscriber
	ch  chan []domain.Event
}

// EventDispatcher delivers committed events to subscribers in commit order.
// Events are dispatched in batches, one per committed call.
//
// Inline subscribers run inside Dispatch, before it returns; use them for
// state later calls depend on (the answer index). Queued subscribers each
// get a buffered channel drained by one worker goroutine started by Run, so
// a slow publisher never delays the sequencer. A full queue makes Dispatch
// wait until the queue has room or ctx ends.
type EventDispatcher struct {
	logger *slog.Logger

	mu     sync.RWMutex
	inline []Subscriber
	queued []*queue
}

// NewEventDispatcher creates an empty dispatcher.
func NewEventDispatcher(logger *slog.Logger) *EventDispatcher {
	return &EventDispatcher{
		logger: logger.With(slog.String("component", "event_dispatcher")),
	}
}

// Inline registers a subscriber that runs synchronously in Dispatch.
func (d *EventDispatcher) Inline(s Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inline = append(d.inline, s)
}

// Subscribe registers a queued subscriber. size <= 0 selects the default
// queue size, counted in batches. Subscribe must be called before Run.
func (d *EventDispatcher) Subscribe(s Subscriber, size int) {
	if size <= 0 {
		size = defaultQueueSize
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued = append(d.queued, &queue{sub: s, ch: make(chan []domain.Event, size)})
}

// Dispatch hands events to every subscriber. Subscriber errors are logged
// and never returned: the call that produced the events has already
// committed.
func (d *EventDispatcher) Dispatch(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, s := range d.inline {
		d.deliver(ctx, s, events)
	}
	for _, q := range d.queued {
		select {
		case q.ch <- events:
		case <-ctx.Done():
			d.logger.WarnContext(ctx, "events dropped",
				slog.String("subscriber", q.sub.Name()),
				slog.Int("events", len(events)),
				slog.String("error", ctx.Err().Error()),
			)
		}
	}
}

// Run drains the queued subscribers until ctx is cancelled. Events still
// buffered at shutdown are delivered with a short grace period.
func (d *EventDispatcher) Run(ctx context.Context) error {
	d.mu.RLock()
	queues := append([]*queue(nil), d.queued...)
	d.mu.RUnlock()

	d.logger.InfoContext(ctx, "event dispatcher started", slog.Int("subscribers", len(queues)))

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		g.Go(func() error {
			d.work(gctx, q)
			return nil
		})
	}
	err := g.Wait()
	d.logger.Info("event dispatcher stopped")
	return err
}

func (d *EventDispatcher) work(ctx context.Context, q *queue) {
	for {
		select {
		case batch := <-q.ch:
			d.deliver(ctx, q.sub, batch)
		case <-ctx.Done():
			d.drain(q)
			return
		}
	}
}

func (d *EventDispatcher) drain(q *queue) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case batch := <-q.ch:
			d.deliver(ctx, q.sub, batch)
		default:
			return
		}
	}
}

func (d *EventDispatcher) deliver(ctx context.Context, s Subscriber, batch []domain.Event) {
	for _, ev := range batch {
		if err := s.HandleEvent(ctx, ev); err != nil {
			d.logger.WarnContext(ctx, "subscriber failed",
				slog.String("subscriber", s.Name()),
				slog.String("type", string(ev.Type)),
				slog.String("question_id", ev.QuestionID.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}
	if f, ok := s.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			d.logger.WarnContext(ctx, "subscriber flush failed",
				slog.String("subscriber", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}
