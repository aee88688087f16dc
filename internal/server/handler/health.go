package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/service"
)

// probeTimeout bounds each backend probe of the health check.
const probeTimeout = 2 * time.Second

// ChainStatus reports the deployment and the simulated chain head.
type ChainStatus interface {
	Contracts() service.Contracts
	Now() uint32
	Block() uint64
}

// HealthHandler serves the health-check and status endpoints.
type HealthHandler struct {
	chain    ChainStatus
	mode     string
	backends map[string]domain.HealthChecker
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. chain may be nil on nodes that
// only relay events; backends may be empty.
func NewHealthHandler(chain ChainStatus, mode string, backends map[string]domain.HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		chain:    chain,
		mode:     mode,
		backends: backends,
		logger:   logHandler(logger, "health"),
	}
}

// HealthCheck probes every configured backend. Any failure turns the
// response into a 503 with status "degraded".
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.backends))
	for name := range h.backends {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	backends := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := h.backends[name].Ping(ctx)
		cancel()
		if err != nil {
			h.logger.WarnContext(r.Context(), "handler: backend unhealthy",
				slog.String("backend", name),
				slog.String("error", err.Error()),
			)
			backends[name] = "down"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		backends[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"backends":  backends,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatus responds with the run mode, contract addresses and chain head.
// GET /api/status
func (h *HealthHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"mode": h.mode}
	if h.chain != nil {
		status["contracts"] = h.chain.Contracts()
		status["now"] = h.chain.Now()
		status["block"] = h.chain.Block()
	}
	writeJSON(w, http.StatusOK, status)
}
