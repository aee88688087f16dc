package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/service"
)

// SimService drives the in-process market engine and clock.
type SimService interface {
	Market(addr common.Address) (service.MarketView, error)
	ReportMarket(ctx context.Context, reporter, market common.Address, payout []*uint256.Int, invalid bool) (*chain.Receipt, error)
	FinalizeMarket(ctx context.Context, from, market common.Address) (*chain.Receipt, error)
	SetTime(ctx context.Context, ts uint32) (uint32, error)
	AdvanceTime(ctx context.Context, d uint32) (uint32, error)
}

// SimHandler serves the simulator endpoints.
type SimHandler struct {
	sim    SimService
	logger *slog.Logger
}

// NewSimHandler creates a SimHandler.
func NewSimHandler(sim SimService, logger *slog.Logger) *SimHandler {
	return &SimHandler{
		sim:    sim,
		logger: logHandler(logger, "sim"),
	}
}

type reportMarketRequest struct {
	Reporter string `json:"reporter"`
	// Answer is Yes, No or anything else for invalid.
	Answer string `json:"answer"`
}

// ReportMarket files the designated report resolving a market to an answer.
// POST /api/sim/markets/{addr}/report
func (h *SimHandler) ReportMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", pathParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req reportMarketRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reporter, err := parseAddress("reporter", req.Reporter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	answer, err := parseHash("answer", req.Answer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.sim.Market(addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get market", err)
		return
	}
	payout, invalid := service.PayoutFor(answer, m.NumTicks)
	rcpt, err := h.sim.ReportMarket(r.Context(), reporter, addr, payout, invalid)
	if err != nil {
		writeServiceError(w, r, h.logger, "report market", err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

type finalizeMarketRequest struct {
	From string `json:"from"`
}

// FinalizeMarket finalizes a reported market.
// POST /api/sim/markets/{addr}/finalize
func (h *SimHandler) FinalizeMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", pathParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req finalizeMarketRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rcpt, err := h.sim.FinalizeMarket(r.Context(), from, addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "finalize market", err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

type setTimeRequest struct {
	// Exactly one of Timestamp and Advance is set.
	Timestamp uint32 `json:"timestamp"`
	Advance   uint32 `json:"advance"`
}

// SetTime moves the simulated clock.
// POST /api/sim/time
func (h *SimHandler) SetTime(w http.ResponseWriter, r *http.Request) {
	var req setTimeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if (req.Timestamp == 0) == (req.Advance == 0) {
		writeError(w, http.StatusBadRequest, "set exactly one of timestamp and advance")
		return
	}

	var (
		now uint32
		err error
	)
	if req.Advance > 0 {
		now, err = h.sim.AdvanceTime(r.Context(), req.Advance)
	} else {
		now, err = h.sim.SetTime(r.Context(), req.Timestamp)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, "set time", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"now": now})
}
