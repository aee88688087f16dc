package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/realityarb/internal/config"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/server/ws"
	"github.com/alanyoungcy/realityarb/internal/service"
)

func testConfig(mode string) *config.Config {
	cfg := config.Defaults()
	cfg.Mode = mode
	cfg.Server.Enabled = false
	cfg.Genesis.StartTime = 1_700_000_000
	return &cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDemoModeCompletes(t *testing.T) {
	a := New(testConfig("demo"), discardLogger())
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))
}

func TestDemoModeRequiresManualClock(t *testing.T) {
	cfg := testConfig("demo")
	cfg.Genesis.Clock = "system"
	a := New(cfg, discardLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manual")
}

func TestMonitorModeNeedsRedis(t *testing.T) {
	a := New(testConfig("monitor"), discardLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestNodeModeStopsOnCancel(t *testing.T) {
	a := New(testConfig("node"), discardLogger())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node mode did not stop")
	}
}

func TestNodePublishesSignedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig("node")
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := New(cfg, discardLogger())
	deps, cleanup, err := Wire(ctx, cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	n, err := a.buildNode(deps)
	require.NoError(t, err)

	ch, err := deps.SignalBus.Subscribe(ctx, service.ChannelPattern)
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	n.start(gctx, g)
	defer func() {
		stop()
		require.NoError(t, g.Wait())
	}()

	_, _, err = n.svc.CreateTemplate(ctx, deps.Signer.Address(), `{"type":"bool"}`)
	require.NoError(t, err)

	select {
	case payload := <-ch:
		ev, signer, err := service.OpenEnvelope(payload)
		require.NoError(t, err)
		assert.Equal(t, domain.EventNewTemplate, ev.Type)
		assert.Equal(t, deps.Signer.Address(), signer)
	case <-ctx.Done():
		t.Fatal("no event published")
	}
}

func TestMonitorCatchUpReadsStream(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig("node")
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := New(cfg, discardLogger())
	deps, cleanup, err := Wire(ctx, cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	n, err := a.buildNode(deps)
	require.NoError(t, err)
	runCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	n.start(gctx, g)

	for i := range 3 {
		_, _, err = n.svc.CreateTemplate(ctx, deps.Signer.Address(), fmt.Sprintf(`{"type":"bool","n":%d}`, i))
		require.NoError(t, err)
	}
	stop()
	require.NoError(t, g.Wait())

	hub := ws.NewHub(discardLogger(), ws.Config{Mode: "monitor"})
	seen, err := a.catchUp(ctx, deps, hub)
	require.NoError(t, err)
	assert.Len(t, seen, 3)
}
