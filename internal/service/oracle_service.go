package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/arbitrator"
	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/platform/augur"
	"github.com/alanyoungcy/realityarb/internal/realitio"
)

const (
	defaultLockTTL  = 10 * time.Second
	dispatchTimeout = 10 * time.Second
)

// OracleDeps are the collaborators of an OracleService.
type OracleDeps struct {
	*Deployment
	Index      *HistoryIndexer
	Dispatcher *EventDispatcher
	// Clock is set when the chain runs on simulated time.
	Clock *chain.ManualClock
	// Locks guards per-question mutations across replicas. Optional.
	Locks   domain.LockManager
	LockTTL time.Duration
	Logger  *slog.Logger
}

// OracleService is the single entry point for callers. Every mutation runs
// as one call on the chain sequencer and its committed events are
// dispatched, in commit order, before the method returns.
type OracleService struct {
	chain      *chain.Chain
	oracle     *realitio.Realitio
	bridge     *arbitrator.Bridge
	universe   *augur.Universe
	rep        *chain.Token
	index      *HistoryIndexer
	dispatcher *EventDispatcher
	clock      *chain.ManualClock
	locks      domain.LockManager
	lockTTL    time.Duration
	logger     *slog.Logger

	// order keeps dispatch in commit order across concurrent callers.
	order sync.Mutex
}

// NewOracleService creates the service.
func NewOracleService(deps OracleDeps) *OracleService {
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &OracleService{
		chain:      deps.Chain,
		oracle:     deps.Oracle,
		bridge:     deps.Bridge,
		universe:   deps.Universe,
		rep:        deps.REP,
		index:      deps.Index,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		locks:      deps.Locks,
		lockTTL:    ttl,
		logger:     deps.Logger.With(slog.String("component", "oracle_service")),
	}
}

// execute runs fn as a call and dispatches its events. lockIDs name the
// questions whose state the call changes.
//
// A node is the only writer of its chain and Chain.Execute already orders
// every call, so the question locks do not guard chain state. They make a
// question id exclusive across nodes sharing one Redis: nodes with the same
// operator key derive the same ids, and during a rolling restart the old and
// new node must not both accept a call for one question.
func (s *OracleService) execute(ctx context.Context, op string, from, to common.Address, value *uint256.Int, lockIDs []common.Hash, fn func(msg domain.Msg) error) (*chain.Receipt, error) {
	if s.locks != nil && len(lockIDs) > 0 {
		ids := append([]common.Hash(nil), lockIDs...)
		sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
		for i, id := range ids {
			if i > 0 && ids[i-1] == id {
				continue
			}
			unlock, err := s.locks.Acquire(ctx, domain.QuestionLockKey(id), s.lockTTL)
			if err != nil {
				return nil, fmt.Errorf("service: %s: %w", op, err)
			}
			defer unlock()
		}
	}

	s.order.Lock()
	defer s.order.Unlock()

	rcpt, err := s.chain.Execute(from, to, value, fn)
	if err != nil {
		s.logger.DebugContext(ctx, "call failed",
			slog.String("op", op),
			slog.String("from", from.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// The call has committed; a cancelled request must not lose its events.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()
	s.dispatcher.Dispatch(dctx, rcpt.Events)

	s.logger.DebugContext(ctx, "call committed",
		slog.String("op", op),
		slog.Uint64("block", rcpt.Block),
		slog.Int("events", len(rcpt.Events)),
	)
	return rcpt, nil
}

// CreateTemplate registers a question template.
func (s *OracleService) CreateTemplate(ctx context.Context, from common.Address, content string) (uint64, *chain.Receipt, error) {
	var id uint64
	rcpt, err := s.execute(ctx, "create_template", from, s.oracle.Address(), nil, nil, func(msg domain.Msg) error {
		var err error
		id, err = s.oracle.CreateTemplate(msg, content)
		return err
	})
	return id, rcpt, err
}

// AskQuestion asks a question; bounty is attached as the initial reward.
func (s *OracleService) AskQuestion(ctx context.Context, from common.Address, bounty *uint256.Int, p realitio.AskQuestionParams) (common.Hash, *chain.Receipt, error) {
	var id common.Hash
	rcpt, err := s.execute(ctx, "ask_question", from, s.oracle.Address(), bounty, nil, func(msg domain.Msg) error {
		var err error
		id, err = s.oracle.AskQuestion(msg, p)
		return err
	})
	return id, rcpt, err
}

// FundAnswerBounty adds value to a question's bounty.
func (s *OracleService) FundAnswerBounty(ctx context.Context, from common.Address, value *uint256.Int, questionID common.Hash) (*chain.Receipt, error) {
	return s.execute(ctx, "fund_bounty", from, s.oracle.Address(), value, []common.Hash{questionID}, func(msg domain.Msg) error {
		return s.oracle.FundAnswerBounty(msg, questionID)
	})
}

// SubmitAnswer posts answer with bond attached. A zero answerer credits the
// caller.
func (s *OracleService) SubmitAnswer(ctx context.Context, from common.Address, bond *uint256.Int, questionID, answer common.Hash, maxPrevious *uint256.Int, answerer common.Address) (*chain.Receipt, error) {
	return s.execute(ctx, "submit_answer", from, s.oracle.Address(), bond, []common.Hash{questionID}, func(msg domain.Msg) error {
		if answerer == (common.Address{}) {
			return s.oracle.SubmitAnswer(msg, questionID, answer, maxPrevious)
		}
		return s.oracle.SubmitAnswerFor(msg, questionID, answer, maxPrevious, answerer)
	})
}

// SubmitAnswerCommitment posts a hidden answer with bond attached.
func (s *OracleService) SubmitAnswerCommitment(ctx context.Context, from common.Address, bond *uint256.Int, questionID, answerHash common.Hash, maxPrevious *uint256.Int, answerer common.Address) (*chain.Receipt, error) {
	if answerer == (common.Address{}) {
		answerer = from
	}
	return s.execute(ctx, "submit_commitment", from, s.oracle.Address(), bond, []common.Hash{questionID}, func(msg domain.Msg) error {
		return s.oracle.SubmitAnswerCommitment(msg, questionID, answerHash, maxPrevious, answerer)
	})
}

// SubmitAnswerReveal reveals a committed answer.
func (s *OracleService) SubmitAnswerReveal(ctx context.Context, from common.Address, questionID, answer common.Hash, nonce, bond *uint256.Int) (*chain.Receipt, error) {
	return s.execute(ctx, "reveal_answer", from, s.oracle.Address(), nil, []common.Hash{questionID}, func(msg domain.Msg) error {
		return s.oracle.SubmitAnswerReveal(msg, questionID, answer, nonce, bond)
	})
}

// ClaimWinnings settles a finalized question. A nil rec is rebuilt from the
// indexed answer log.
func (s *OracleService) ClaimWinnings(ctx context.Context, from common.Address, questionID common.Hash, rec *domain.ClaimRecord) (*chain.Receipt, error) {
	r, err := s.claimRecord(ctx, questionID, rec)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, "claim_winnings", from, s.oracle.Address(), nil, []common.Hash{questionID}, func(msg domain.Msg) error {
		return s.oracle.ClaimWinnings(msg, questionID, r)
	})
}

// ClaimMultipleAndWithdraw settles every question from the index and pays
// the caller's balance out. It returns the amount withdrawn.
func (s *OracleService) ClaimMultipleAndWithdraw(ctx context.Context, from common.Address, questionIDs []common.Hash) (*uint256.Int, *chain.Receipt, error) {
	recs := make([]domain.ClaimRecord, len(questionIDs))
	for i, id := range questionIDs {
		r, err := s.claimRecord(ctx, id, nil)
		if err != nil {
			return nil, nil, err
		}
		recs[i] = r
	}
	var paid *uint256.Int
	rcpt, err := s.execute(ctx, "claim_multiple", from, s.oracle.Address(), nil, questionIDs, func(msg domain.Msg) error {
		var err error
		paid, err = s.oracle.ClaimMultipleAndWithdraw(msg, questionIDs, recs)
		return err
	})
	return paid, rcpt, err
}

// Withdraw pays the caller's claimed balance out and returns the amount.
func (s *OracleService) Withdraw(ctx context.Context, from common.Address) (*uint256.Int, *chain.Receipt, error) {
	var paid *uint256.Int
	rcpt, err := s.execute(ctx, "withdraw", from, s.oracle.Address(), nil, nil, func(msg domain.Msg) error {
		var err error
		paid, err = s.oracle.Withdraw(msg)
		return err
	})
	return paid, rcpt, err
}

func (s *OracleService) claimRecord(ctx context.Context, questionID common.Hash, rec *domain.ClaimRecord) (domain.ClaimRecord, error) {
	if rec != nil {
		return *rec, nil
	}
	return s.index.ClaimRecord(ctx, questionID)
}

// RequestArbitration pays fee to the bridge to freeze a question.
func (s *OracleService) RequestArbitration(ctx context.Context, from common.Address, fee *uint256.Int, questionID common.Hash, maxPrevious *uint256.Int) (*chain.Receipt, error) {
	return s.execute(ctx, "request_arbitration", from, s.bridge.Address(), fee, []common.Hash{questionID}, func(msg domain.Msg) error {
		return s.bridge.RequestArbitration(msg, questionID, maxPrevious)
	})
}

// MarketParams restates a question in the form CreateMarket expects.
func (s *OracleService) MarketParams(ctx context.Context, questionID common.Hash, reporter common.Address) (arbitrator.CreateMarketParams, error) {
	q, err := s.Question(ctx, questionID)
	if err != nil {
		return arbitrator.CreateMarketParams{}, err
	}
	return arbitrator.CreateMarketParams{
		Question:           q.Text,
		Timeout:            q.Timeout,
		OpeningTS:          q.OpeningTS,
		Asker:              q.Asker,
		Nonce:              q.Nonce,
		DesignatedReporter: reporter,
	}, nil
}

// CreateMarket backs a requested arbitration with a market; validityBond is
// attached. The caller becomes the market owner.
func (s *OracleService) CreateMarket(ctx context.Context, from common.Address, validityBond *uint256.Int, p arbitrator.CreateMarketParams) (common.Address, *chain.Receipt, error) {
	var market common.Address
	lockIDs := []common.Hash{s.bridge.QuestionID(p)}
	rcpt, err := s.execute(ctx, "create_market", from, s.bridge.Address(), validityBond, lockIDs, func(msg domain.Msg) error {
		var err error
		market, err = s.bridge.CreateMarket(msg, p)
		return err
	})
	return market, rcpt, err
}

// ReportAnswer pushes a resolved market's verdict into the oracle. A nil tip
// is taken from the indexed answer log.
func (s *OracleService) ReportAnswer(ctx context.Context, from common.Address, questionID common.Hash, tip *arbitrator.ReportTip) (*chain.Receipt, error) {
	var t arbitrator.ReportTip
	if tip != nil {
		t = *tip
	} else {
		var err error
		if t, err = s.index.Tip(ctx, questionID); err != nil {
			return nil, err
		}
	}
	return s.execute(ctx, "report_answer", from, s.bridge.Address(), nil, []common.Hash{questionID}, func(msg domain.Msg) error {
		return s.bridge.ReportAnswer(msg, questionID, t)
	})
}
