package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// EventNotifier alerts operators about an event. *notify.Notifier
// satisfies it.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, ev domain.Event) error
}

// EventPublisher pushes committed events to the outside world: live fan-out
// on ch:realitio:<type>, the durable events:realitio stream, the audit log and
// operator notifications. Every sink is optional.
type EventPublisher struct {
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier EventNotifier
	signer   *crypto.Signer
	logger   *slog.Logger
}

// PublisherDeps are the EventPublisher's sinks. Nil fields are skipped.
type PublisherDeps struct {
	Bus      domain.SignalBus
	Audit    domain.AuditStore
	Notifier EventNotifier
	Signer   *crypto.Signer
}

// NewEventPublisher creates a publisher writing to the given sinks.
func NewEventPublisher(deps PublisherDeps, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		bus:      deps.Bus,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		signer:   deps.Signer,
		logger:   logger.With(slog.String("component", "event_publisher")),
	}
}

func (p *EventPublisher) Name() string { return "event_publisher" }

// HandleEvent delivers ev to every sink. A failing sink does not stop the
// others; failures are joined into the returned error.
func (p *EventPublisher) HandleEvent(ctx context.Context, ev domain.Event) error {
	var errs []error

	if p.bus != nil {
		payload, err := SealEvent(ev, p.signer)
		if err != nil {
			return err
		}
		if err := p.bus.Publish(ctx, ChannelPrefix+string(ev.Type), payload); err != nil {
			errs = append(errs, err)
		}
		if err := p.bus.StreamAppend(ctx, EventStream, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if p.audit != nil {
		detail := map[string]any{
			"emitter":   ev.Emitter.Hex(),
			"timestamp": ev.Timestamp,
		}
		if ev.QuestionID != (common.Hash{}) {
			detail["question_id"] = ev.QuestionID.Hex()
		}
		if err := p.audit.Log(ctx, "event."+string(ev.Type), detail); err != nil {
			errs = append(errs, fmt.Errorf("service: audit %s: %w", ev.Type, err))
		}
	}

	if p.notifier != nil {
		if err := p.notifier.NotifyEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		p.logger.DebugContext(ctx, "event published",
			slog.String("type", string(ev.Type)),
			slog.String("question_id", ev.QuestionID.Hex()),
		)
	}
	return errors.Join(errs...)
}
