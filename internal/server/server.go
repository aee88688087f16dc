package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/server/handler"
	"github.com/alanyoungcy/realityarb/internal/server/middleware"
	"github.com/alanyoungcy/realityarb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	PublicReads bool

	// RateLimit is the per-client budget per minute. Zero or a nil Limiter
	// disables it.
	RateLimit int
	Limiter   domain.RateLimiter
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Questions   *handler.QuestionHandler
	Arbitration *handler.ArbitrationHandler
	Sim         *handler.SimHandler
	Archive     *handler.ArchiveHandler
	Records     *handler.RecordsHandler
}

// Server is the HTTP + WebSocket API in front of the oracle node.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// Nil handler groups are left unrouted. It wires up middleware (logging,
// CORS, auth, rate limiting) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Health.GetStatus)

	// Templates, questions and balances.
	if q := handlers.Questions; q != nil {
		mux.HandleFunc("POST /api/templates", q.CreateTemplate)
		mux.HandleFunc("GET /api/templates/{id}", q.GetTemplate)
		mux.HandleFunc("POST /api/questions", q.AskQuestion)
		mux.HandleFunc("GET /api/questions/{id}", q.GetQuestion)
		mux.HandleFunc("POST /api/questions/{id}/bounty", q.FundBounty)
		mux.HandleFunc("POST /api/questions/{id}/answers", q.SubmitAnswer)
		mux.HandleFunc("POST /api/questions/{id}/commitments", q.SubmitCommitment)
		mux.HandleFunc("POST /api/questions/{id}/reveals", q.RevealAnswer)
		mux.HandleFunc("GET /api/questions/{id}/history", q.GetHistory)
		mux.HandleFunc("POST /api/questions/{id}/claim", q.Claim)
		mux.HandleFunc("GET /api/commitments/{id}", q.GetCommitment)
		mux.HandleFunc("POST /api/withdraw", q.Withdraw)
		mux.HandleFunc("GET /api/balances/{addr}", q.GetBalances)
	}

	// Arbitration.
	if a := handlers.Arbitration; a != nil {
		mux.HandleFunc("GET /api/arbitration/fee", a.GetFees)
		mux.HandleFunc("POST /api/arbitration/markets", a.CreateMarket)
		mux.HandleFunc("GET /api/arbitration/{id}", a.GetRequest)
		mux.HandleFunc("POST /api/arbitration/{id}/request", a.RequestArbitration)
		mux.HandleFunc("POST /api/arbitration/{id}/report", a.ReportAnswer)
		mux.HandleFunc("GET /api/markets/{addr}", a.GetMarket)
	}

	// Simulator.
	if s := handlers.Sim; s != nil {
		mux.HandleFunc("POST /api/sim/markets/{addr}/report", s.ReportMarket)
		mux.HandleFunc("POST /api/sim/markets/{addr}/finalize", s.FinalizeMarket)
		mux.HandleFunc("POST /api/sim/time", s.SetTime)
	}

	// Settled-history archive.
	if a := handlers.Archive; a != nil {
		mux.HandleFunc("GET /api/archive", a.ListArchived)
		mux.HandleFunc("GET /api/questions/{id}/archive", a.GetArchived)
	}

	// Persisted snapshots and audit log.
	if rec := handlers.Records; rec != nil {
		mux.HandleFunc("GET /api/questions", rec.ListQuestions)
		mux.HandleFunc("GET /api/audit", rec.ListAudit)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(middleware.AuthConfig{
		APIKey:      cfg.APIKey,
		PublicReads: cfg.PublicReads,
		Public:      []string{"/api/health"},
	})(h)

	if cfg.RateLimit > 0 && cfg.Limiter != nil {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, time.Minute)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
