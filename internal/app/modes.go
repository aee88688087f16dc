package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/realityarb/internal/server"
	"github.com/alanyoungcy/realityarb/internal/server/handler"
	"github.com/alanyoungcy/realityarb/internal/server/ws"
	"github.com/alanyoungcy/realityarb/internal/service"
)

// NodeMode deploys the oracle, the arbitration bridge and the market
// simulator, then serves the API until ctx is cancelled.
func (a *App) NodeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting node mode")

	n, err := a.buildNode(deps)
	if err != nil {
		return fmt.Errorf("node mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	n.start(ctx, g)

	if a.cfg.Server.Enabled {
		handlers := server.Handlers{
			Health:      handler.NewHealthHandler(n.svc, a.cfg.Mode, deps.Health, a.logger),
			Questions:   handler.NewQuestionHandler(n.svc, a.logger),
			Arbitration: handler.NewArbitrationHandler(n.svc, a.logger),
			Sim:         handler.NewSimHandler(n.svc, a.logger),
		}
		if deps.HistoryArchive != nil {
			handlers.Archive = handler.NewArchiveHandler(deps.HistoryArchive, a.logger)
		}
		if deps.QuestionStore != nil && deps.AuditStore != nil {
			handlers.Records = handler.NewRecordsHandler(deps.QuestionStore, deps.AuditStore, a.logger)
		}
		a.startHTTPServer(ctx, g, deps, handlers, n.hub)
	}

	return g.Wait()
}

// MonitorMode follows the events another node publishes on the signal bus and
// relays them to the notifier and to WebSocket clients. It first loads the
// retained event stream into the hub's replay backlog. It runs no contracts.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	if deps.SignalBus == nil {
		return errors.New("monitor mode: redis must be enabled")
	}

	hub := ws.NewHub(a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })

	g.Go(func() error {
		// Subscribe before catching up so nothing published in between is
		// lost; the overlap is skipped by payload.
		ch, err := deps.SignalBus.Subscribe(ctx, service.ChannelPattern)
		if err != nil {
			return fmt.Errorf("monitor mode: subscribe %s: %w", service.ChannelPattern, err)
		}
		seen, err := a.catchUp(ctx, deps, hub)
		if err != nil {
			return fmt.Errorf("monitor mode: %w", err)
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case payload, ok := <-ch:
				if !ok {
					return nil
				}
				if seen != nil {
					if _, dup := seen[string(payload)]; dup {
						continue
					}
					seen = nil
				}
				a.relay(ctx, deps, hub, payload, true)
			}
		}
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, server.Handlers{
			Health: handler.NewHealthHandler(nil, a.cfg.Mode, deps.Health, a.logger),
		}, hub)
	}

	return g.Wait()
}

// catchUpPage is the stream page size used while catching up.
const catchUpPage = 200

// catchUp feeds the retained event stream to the hub so WebSocket clients
// can replay history from before the monitor started. Nothing is notified.
// It returns the payloads it relayed.
func (a *App) catchUp(ctx context.Context, deps *Dependencies, hub *ws.Hub) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	last := "0"
	for {
		msgs, err := deps.SignalBus.StreamRead(ctx, service.EventStream, last, catchUpPage)
		if err != nil {
			return nil, fmt.Errorf("catch up: %w", err)
		}
		for _, m := range msgs {
			a.relay(ctx, deps, hub, m.Payload, false)
			seen[string(m.Payload)] = struct{}{}
			last = m.ID
		}
		if len(msgs) < catchUpPage {
			break
		}
	}
	a.logger.InfoContext(ctx, "monitor: caught up", slog.Int("events", len(seen)))
	return seen, nil
}

// relay verifies one published envelope and forwards its event to the hub
// and, when notify is set, to the notifier.
func (a *App) relay(ctx context.Context, deps *Dependencies, hub *ws.Hub, payload []byte, notify bool) {
	ev, signer, err := service.OpenEnvelope(payload)
	if err != nil {
		a.logger.WarnContext(ctx, "monitor: dropping envelope", slog.String("error", err.Error()))
		return
	}
	logger := a.logger.With(
		slog.String("event", string(ev.Type)),
		slog.String("question_id", ev.QuestionID.Hex()),
	)
	if signer != deps.Signer.Address() {
		logger = logger.With(slog.String("signer", signer.Hex()))
	}
	logger.DebugContext(ctx, "monitor: event")

	if err := hub.HandleEvent(ctx, ev); err != nil {
		logger.WarnContext(ctx, "monitor: broadcast failed", slog.String("error", err.Error()))
	}
	if notify && deps.Notifier != nil {
		if err := deps.Notifier.NotifyEvent(ctx, ev); err != nil {
			logger.WarnContext(ctx, "monitor: notify failed", slog.String("error", err.Error()))
		}
	}
}

// startHTTPServer adds the API server to g. The server is shut down
// gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, handlers server.Handlers, hub *ws.Hub) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		PublicReads: a.cfg.Server.PublicReads,
		RateLimit:   a.cfg.Server.RateLimit,
		Limiter:     deps.RateLimiter,
	}, handlers, hub, a.logger.With(slog.String("component", "server")))

	g.Go(func() error {
		port := a.cfg.Server.Port
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
