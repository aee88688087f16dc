package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/arbitrator"
	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/service"
)

// ArbitrationService defines the bridge operations the arbitration handler
// needs.
type ArbitrationService interface {
	RequestArbitration(ctx context.Context, from common.Address, fee *uint256.Int, questionID common.Hash, maxPrevious *uint256.Int) (*chain.Receipt, error)
	MarketParams(ctx context.Context, questionID common.Hash, reporter common.Address) (arbitrator.CreateMarketParams, error)
	CreateMarket(ctx context.Context, from common.Address, validityBond *uint256.Int, p arbitrator.CreateMarketParams) (common.Address, *chain.Receipt, error)
	ReportAnswer(ctx context.Context, from common.Address, questionID common.Hash, tip *arbitrator.ReportTip) (*chain.Receipt, error)
	ArbitrationRequest(ctx context.Context, questionID common.Hash) (domain.ArbitrationRequest, error)
	DisputeFee(questionID common.Hash) *uint256.Int
	MarketBonds() (validity, noShow *uint256.Int)
	Market(addr common.Address) (service.MarketView, error)
}

// ArbitrationHandler serves the market-backed arbitrator endpoints. Like
// QuestionHandler it acts for the "from" account named in the request.
type ArbitrationHandler struct {
	bridge ArbitrationService
	logger *slog.Logger
}

// NewArbitrationHandler creates an ArbitrationHandler.
func NewArbitrationHandler(bridge ArbitrationService, logger *slog.Logger) *ArbitrationHandler {
	return &ArbitrationHandler{
		bridge: bridge,
		logger: logHandler(logger, "arbitration"),
	}
}

type requestArbitrationRequest struct {
	From        string `json:"from"`
	Fee         string `json:"fee"`
	MaxPrevious string `json:"max_previous"`
}

// RequestArbitration pays the dispute fee and freezes the question.
// POST /api/arbitration/{id}/request
func (h *ArbitrationHandler) RequestArbitration(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req requestArbitrationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxPrev, err := parseAmount("max_previous", req.MaxPrevious)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rcpt, err := h.bridge.RequestArbitration(r.Context(), from, fee, id, maxPrev)
	if err != nil {
		writeServiceError(w, r, h.logger, "request arbitration", err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

type createMarketRequest struct {
	From       string `json:"from"`
	QuestionID string `json:"question_id"`
	// Reporter defaults to From.
	Reporter string `json:"reporter"`
	// ValidityBond defaults to the universe's current bond.
	ValidityBond string `json:"validity_bond"`
}

// CreateMarket backs a pending arbitration request with a market.
// POST /api/arbitration/markets
func (h *ArbitrationHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	qid, err := parseHash("question_id", req.QuestionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reporter := from
	if req.Reporter != "" {
		if reporter, err = parseAddress("reporter", req.Reporter); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var bond *uint256.Int
	if req.ValidityBond == "" {
		bond, _ = h.bridge.MarketBonds()
	} else if bond, err = parseAmount("validity_bond", req.ValidityBond); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := h.bridge.MarketParams(r.Context(), qid, reporter)
	if err != nil {
		writeServiceError(w, r, h.logger, "market params", err)
		return
	}
	market, rcpt, err := h.bridge.CreateMarket(r.Context(), from, bond, params)
	if err != nil {
		writeServiceError(w, r, h.logger, "create market", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"market":  market,
		"receipt": rcpt,
	})
}

type reportTipRequest struct {
	LastHistoryHash          string `json:"last_history_hash"`
	LastAnswerOrCommitmentID string `json:"last_answer_or_commitment_id"`
	LastBond                 string `json:"last_bond"`
	LastAnswerer             string `json:"last_answerer"`
	IsCommitment             bool   `json:"is_commitment"`
}

func (t reportTipRequest) parse() (*arbitrator.ReportTip, error) {
	var (
		tip arbitrator.ReportTip
		err error
	)
	if tip.LastHistoryHash, err = parseHash("last_history_hash", t.LastHistoryHash); err != nil {
		return nil, err
	}
	if tip.LastAnswerOrCommitmentID, err = parseHash("last_answer_or_commitment_id", t.LastAnswerOrCommitmentID); err != nil {
		return nil, err
	}
	if tip.LastBond, err = parseAmount("last_bond", t.LastBond); err != nil {
		return nil, err
	}
	if tip.LastAnswerer, err = parseOptionalAddress("last_answerer", t.LastAnswerer); err != nil {
		return nil, err
	}
	tip.IsCommitment = t.IsCommitment
	return &tip, nil
}

type reportAnswerRequest struct {
	From string `json:"from"`
	// Tip overrides the indexed history tip when set.
	Tip *reportTipRequest `json:"tip,omitempty"`
}

// ReportAnswer pushes a finalized market's verdict into the oracle.
// POST /api/arbitration/{id}/report
func (h *ArbitrationHandler) ReportAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req reportAnswerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var tip *arbitrator.ReportTip
	if req.Tip != nil {
		if tip, err = req.Tip.parse(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rcpt, err := h.bridge.ReportAnswer(r.Context(), from, id, tip)
	if err != nil {
		writeServiceError(w, r, h.logger, "report answer", err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

// GetRequest returns the bridge's record for a question.
// GET /api/arbitration/{id}
func (h *ArbitrationHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := h.bridge.ArbitrationRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get arbitration request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetFees returns the dispute fee and the bonds a market creator must post.
// GET /api/arbitration/fee?question_id=0x...
func (h *ArbitrationHandler) GetFees(w http.ResponseWriter, r *http.Request) {
	var qid common.Hash
	if s := r.URL.Query().Get("question_id"); s != "" {
		var err error
		if qid, err = parseHash("question_id", s); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	validity, noShow := h.bridge.MarketBonds()
	writeJSON(w, http.StatusOK, map[string]any{
		"dispute_fee":   h.bridge.DisputeFee(qid),
		"validity_bond": validity,
		"no_show_bond":  noShow,
	})
}

// GetMarket returns a market summary.
// GET /api/markets/{addr}
func (h *ArbitrationHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", pathParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.bridge.Market(addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
