package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/realitio"
	"github.com/alanyoungcy/realityarb/internal/service"
)

// QuestionService defines the oracle operations the question handler needs.
type QuestionService interface {
	CreateTemplate(ctx context.Context, from common.Address, content string) (uint64, *chain.Receipt, error)
	Template(id uint64) (domain.Template, error)
	AskQuestion(ctx context.Context, from common.Address, bounty *uint256.Int, p realitio.AskQuestionParams) (common.Hash, *chain.Receipt, error)
	FundAnswerBounty(ctx context.Context, from common.Address, value *uint256.Int, questionID common.Hash) (*chain.Receipt, error)
	SubmitAnswer(ctx context.Context, from common.Address, bond *uint256.Int, questionID, answer common.Hash, maxPrevious *uint256.Int, answerer common.Address) (*chain.Receipt, error)
	SubmitAnswerCommitment(ctx context.Context, from common.Address, bond *uint256.Int, questionID, answerHash common.Hash, maxPrevious *uint256.Int, answerer common.Address) (*chain.Receipt, error)
	SubmitAnswerReveal(ctx context.Context, from common.Address, questionID, answer common.Hash, nonce, bond *uint256.Int) (*chain.Receipt, error)
	ClaimWinnings(ctx context.Context, from common.Address, questionID common.Hash, rec *domain.ClaimRecord) (*chain.Receipt, error)
	ClaimMultipleAndWithdraw(ctx context.Context, from common.Address, questionIDs []common.Hash) (*uint256.Int, *chain.Receipt, error)
	Withdraw(ctx context.Context, from common.Address) (*uint256.Int, *chain.Receipt, error)

	Question(ctx context.Context, id common.Hash) (domain.Question, error)
	FinalAnswer(id common.Hash) (common.Hash, error)
	Commitment(id common.Hash) (domain.Commitment, error)
	History(ctx context.Context, id common.Hash) ([]domain.AnswerEntry, error)
	Balances(addr common.Address) service.Balances
}

// QuestionHandler serves templates, questions, answers and claims.
//
// Mutating endpoints act for the account in the request's "from" field and
// nothing is signed by the caller: an API key lets a client drive the
// simulated chain as any account. It is a simulator API, not a wallet.
type QuestionHandler struct {
	oracle QuestionService
	logger *slog.Logger
}

// NewQuestionHandler creates a QuestionHandler.
func NewQuestionHandler(oracle QuestionService, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{
		oracle: oracle,
		logger: logHandler(logger, "questions"),
	}
}

type createTemplateRequest struct {
	From    string `json:"from"`
	Content string `json:"content"`
}

// CreateTemplate registers a question template.
// POST /api/templates
func (h *QuestionHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	id, rcpt, err := h.oracle.CreateTemplate(r.Context(), from, req.Content)
	if err != nil {
		writeServiceError(w, r, h.logger, "create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"template_id": id,
		"receipt":     rcpt,
	})
}

// GetTemplate returns a template by numeric ID.
// GET /api/templates/{id}
func (h *QuestionHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(pathParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "template id must be a number")
		return
	}
	tpl, err := h.oracle.Template(id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get template", err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

type askQuestionRequest struct {
	From       string `json:"from"`
	TemplateID uint64 `json:"template_id"`
	Question   string `json:"question"`
	Arbitrator string `json:"arbitrator"`
	Timeout    uint32 `json:"timeout"`
	OpeningTS  uint32 `json:"opening_ts"`
	Nonce      string `json:"nonce"`
	Bounty     string `json:"bounty"`
}

// AskQuestion creates a question, optionally funding its bounty.
// POST /api/questions
func (h *QuestionHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	var req askQuestionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	arb, err := parseOptionalAddress("arbitrator", req.Arbitrator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nonce, err := parseAmount("nonce", req.Nonce)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bounty, err := parseAmount("bounty", req.Bounty)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, rcpt, err := h.oracle.AskQuestion(r.Context(), from, bounty, realitio.AskQuestionParams{
		TemplateID: req.TemplateID,
		Question:   req.Question,
		Arbitrator: arb,
		Timeout:    req.Timeout,
		OpeningTS:  req.OpeningTS,
		Nonce:      nonce,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "ask question", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"question_id": id,
		"receipt":     rcpt,
	})
}

type questionResponse struct {
	domain.Question
	Finalized   bool         `json:"finalized"`
	FinalAnswer *common.Hash `json:"final_answer,omitempty"`
}

// GetQuestion returns the stored question and whether it is final.
// GET /api/questions/{id}
func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.oracle.Question(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get question", err)
		return
	}

	resp := questionResponse{Question: q}
	if answer, err := h.oracle.FinalAnswer(id); err == nil {
		resp.Finalized = true
		resp.FinalAnswer = &answer
	}
	writeJSON(w, http.StatusOK, resp)
}

type fundRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// FundBounty adds to a question's bounty.
// POST /api/questions/{id}/bounty
func (h *QuestionHandler) FundBounty(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req fundRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rcpt, err := h.oracle.FundAnswerBounty(r.Context(), from, amount, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "fund bounty", err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

// answerRequest covers both plain answers and commitments. For a commitment
// Answer carries the answer hash.
type answerRequest struct {
	From        string `json:"from"`
	Answer      string `json:"answer"`
	Bond        string `json:"bond"`
	MaxPrevious string `json:"max_previous"`
	Answerer    string `json:"answerer"`
}

type parsedAnswer struct {
	from, answerer common.Address
	answer         common.Hash
	bond, maxPrev  *uint256.Int
}

func parseAnswerRequest(req answerRequest) (parsedAnswer, error) {
	var (
		p   parsedAnswer
		err error
	)
	if p.from, err = parseAddress("from", req.From); err != nil {
		return p, err
	}
	if p.answerer, err = parseOptionalAddress("answerer", req.Answerer); err != nil {
		return p, err
	}
	if p.answer, err = parseHash("answer", req.Answer); err != nil {
		return p, err
	}
	if p.bond, err = parseAmount("bond", req.Bond); err != nil {
		return p, err
	}
	if p.maxPrev, err = parseAmount("max_previous", req.MaxPrevious); err != nil {
		return p, err
	}
	return p, nil
}

// SubmitAnswer posts an answer with its bond.
// POST /api/questions/{id}/answers
func (h *QuestionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, "submit answer", h.oracle.SubmitAnswer)
}

// SubmitCommitment posts a hidden answer hash with its bond.
// POST /api/questions/{id}/commitments
func (h *QuestionHandler) SubmitCommitment(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, "submit commitment", h.oracle.SubmitAnswerCommitment)
}

type answerFunc func(ctx context.Context, from common.Address, bond *uint256.Int, questionID, answer common.Hash, maxPrevious *uint256.Int, answerer common.Address) (*chain.Receipt, error)

func (h *QuestionHandler) answer(w http.ResponseWriter, r *http.Request, op string, submit answerFunc) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := parseAnswerRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rcpt, err := submit(r.Context(), p.from, p.bond, id, p.answer, p.maxPrev, p.answerer)
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

type revealRequest struct {
	From   string `json:"from"`
	Answer string `json:"answer"`
	Nonce  string `json:"nonce"`
	Bond   string `json:"bond"`
}

// RevealAnswer opens a previously committed answer.
// POST /api/questions/{id}/reveals
func (h *QuestionHandler) RevealAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req revealRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	answer, err := parseHash("answer", req.Answer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nonce, err := parseAmount("nonce", req.Nonce)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bond, err := parseAmount("bond", req.Bond)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rcpt, err := h.oracle.SubmitAnswerReveal(r.Context(), from, id, answer, nonce, bond)
	if err != nil {
		writeServiceError(w, r, h.logger, "reveal answer", err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

// GetCommitment returns a commitment by its ID.
// GET /api/commitments/{id}
func (h *QuestionHandler) GetCommitment(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.oracle.Commitment(id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get commitment", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetHistory returns the indexed answer history, oldest first.
// GET /api/questions/{id}/history
func (h *QuestionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.oracle.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get history", err)
		return
	}
	if entries == nil {
		entries = []domain.AnswerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type claimRequest struct {
	From string `json:"from"`
	// History overrides the indexed answer log when set.
	History *domain.ClaimRecord `json:"history,omitempty"`
}

// Claim settles a finalized question's bonds and bounty.
// POST /api/questions/{id}/claim
func (h *QuestionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req claimRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rcpt, err := h.oracle.ClaimWinnings(r.Context(), from, id, req.History)
	if err != nil {
		writeServiceError(w, r, h.logger, "claim winnings", err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse{Receipt: rcpt})
}

type withdrawRequest struct {
	From string `json:"from"`
	// Questions are claimed from the indexed histories before withdrawing.
	Questions []string `json:"questions,omitempty"`
}

// Withdraw pays out the caller's claimable balance, first claiming any
// listed questions.
// POST /api/withdraw
func (h *QuestionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		amount *uint256.Int
		rcpt   *chain.Receipt
	)
	if len(req.Questions) == 0 {
		amount, rcpt, err = h.oracle.Withdraw(r.Context(), from)
	} else {
		ids := make([]common.Hash, len(req.Questions))
		for i, s := range req.Questions {
			if ids[i], err = parseHash("questions", s); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		amount, rcpt, err = h.oracle.ClaimMultipleAndWithdraw(r.Context(), from, ids)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":  amount,
		"receipt": rcpt,
	})
}

// GetBalances returns native, claimable and REP balances.
// GET /api/balances/{addr}
func (h *QuestionHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", pathParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.oracle.Balances(addr))
}
