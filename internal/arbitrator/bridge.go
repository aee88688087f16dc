// Package arbitrator bridges the oracle to a prediction market: for a fee it
// freezes a question, backs a Yes/No market with a validity bond and, once the
// market resolves, pushes the market's verdict into the oracle as the final
// answer.
package arbitrator

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/realitio"
)

// Oracle is the part of the question oracle the bridge drives.
type Oracle interface {
	Address() common.Address
	Question(id common.Hash) (domain.Question, error)
	NotifyOfArbitrationRequest(msg domain.Msg, questionID common.Hash, requester common.Address, maxPrevious *uint256.Int) error
	AssignWinnerAndSubmitAnswerByArbitrator(msg domain.Msg, questionID common.Hash, res realitio.ArbitrationResult) error
}

// Config fixes the template questions must use and the dispute fee.
type Config struct {
	TemplateID uint64
	DisputeFee *uint256.Int
}

// Deps are the bridge's collaborators.
type Deps struct {
	Oracle   Oracle
	Universe domain.Universe
	// MarketToken is the denomination token of created markets.
	MarketToken common.Address
	Clock       domain.Clock
	Ledger      domain.ValueLedger
	Emitter     domain.EventEmitter
	Logger      *slog.Logger
}

// Bridge is the arbitrator contract. Like the oracle it is driven through
// the chain sequencer; attached value has already reached Address().
type Bridge struct {
	address     common.Address
	templateID  uint64
	disputeFee  *uint256.Int
	oracle      Oracle
	universe    domain.Universe
	marketToken common.Address
	clock       domain.Clock
	ledger      domain.ValueLedger
	emitter     domain.EventEmitter
	logger      *slog.Logger

	requests map[common.Hash]*domain.ArbitrationRequest
}

// New creates a bridge deployed at address.
func New(address common.Address, cfg Config, deps Deps) *Bridge {
	fee := cfg.DisputeFee
	if fee == nil {
		fee = new(uint256.Int)
	}
	return &Bridge{
		address:     address,
		templateID:  cfg.TemplateID,
		disputeFee:  fee.Clone(),
		oracle:      deps.Oracle,
		universe:    deps.Universe,
		marketToken: deps.MarketToken,
		clock:       deps.Clock,
		ledger:      deps.Ledger,
		emitter:     deps.Emitter,
		logger:      deps.Logger.With(slog.String("component", "arbitrator")),
		requests:    make(map[common.Hash]*domain.ArbitrationRequest),
	}
}

func (b *Bridge) Address() common.Address        { return b.address }
func (b *Bridge) TemplateID() uint64             { return b.templateID }
func (b *Bridge) LatestUniverse() common.Address { return b.universe.Address() }
func (b *Bridge) MarketToken() common.Address    { return b.marketToken }

// GetDisputeFee returns the fee for arbitrating questionID. It is the same
// for every question.
func (b *Bridge) GetDisputeFee(common.Hash) *uint256.Int {
	return b.disputeFee.Clone()
}

// RequestArbitration pays the dispute fee and freezes the question in the
// oracle. maxPrevious follows the oracle's rule: zero disables the check,
// otherwise the call fails if the current bond is above it.
func (b *Bridge) RequestArbitration(msg domain.Msg, questionID common.Hash, maxPrevious *uint256.Int) error {
	fee := msg.ValueOrZero()
	if fee.Lt(b.disputeFee) {
		return fmt.Errorf("arbitrator: request %s: paid %s, fee %s: %w", questionID.Hex(), fee.Dec(), b.disputeFee.Dec(), domain.ErrInsufficientFee)
	}
	if req, ok := b.requests[questionID]; ok && req.State != domain.ArbitrationOpen {
		return fmt.Errorf("arbitrator: request %s: %w", questionID.Hex(), domain.ErrQuestionFrozen)
	}
	if err := b.oracle.NotifyOfArbitrationRequest(b.self(), questionID, msg.Sender, maxPrevious); err != nil {
		return fmt.Errorf("arbitrator: request %s: %w", questionID.Hex(), err)
	}

	b.requests[questionID] = &domain.ArbitrationRequest{
		QuestionID:      questionID,
		MaxPreviousBond: cloneOrZero(maxPrevious),
		Requester:       msg.Sender,
		FeePaid:         fee.Clone(),
		State:           domain.ArbitrationRequested,
		RequestedAt:     b.clock.Now(),
	}
	b.emit(domain.EventRequestArbitration, questionID, domain.ArbitrationRequestData{
		Requester:   msg.Sender,
		MaxPrevious: cloneOrZero(maxPrevious),
		Fee:         fee.Clone(),
	})
	b.logger.Info("arbitration requested",
		slog.String("question_id", questionID.Hex()),
		slog.String("requester", msg.Sender.Hex()),
		slog.String("fee", fee.Dec()),
	)
	return nil
}

// CreateMarketParams restate the question so the bridge can derive its id.
type CreateMarketParams struct {
	Question           string
	Timeout            uint32
	OpeningTS          uint32
	Asker              common.Address
	Nonce              *uint256.Int
	DesignatedReporter common.Address
}

// QuestionID returns the id of the question p describes when asked with
// this bridge as arbitrator.
func (b *Bridge) QuestionID(p CreateMarketParams) common.Hash {
	nonce := p.Nonce
	if nonce == nil {
		nonce = new(uint256.Int)
	}
	contentHash := crypto.ContentHash(b.templateID, p.OpeningTS, p.Question)
	return crypto.QuestionID(contentHash, b.address, p.Timeout, p.Asker, nonce)
}

// CreateMarket backs an arbitration request with a Yes/No market. The
// attached value is forwarded as the validity bond and the universe takes
// the no-show bond from the bridge's own REP. msg.Sender becomes the market
// owner and is paid the dispute fee when the answer is reported. Only one
// market is created per question.
func (b *Bridge) CreateMarket(msg domain.Msg, p CreateMarketParams) (common.Address, error) {
	questionID := b.QuestionID(p)

	req, ok := b.requests[questionID]
	switch {
	case !ok || req.State == domain.ArbitrationOpen:
		return common.Address{}, fmt.Errorf("arbitrator: create market %s: %w", questionID.Hex(), domain.ErrArbitrationNotRequested)
	case req.State != domain.ArbitrationRequested:
		return common.Address{}, fmt.Errorf("arbitrator: create market %s: %w", questionID.Hex(), domain.ErrAlreadyCreated)
	}

	noShow := b.universe.GetOrCacheDesignatedReportNoShowBond()
	if rep := b.universe.GetReputationToken().BalanceOf(b.address); rep.Lt(noShow) {
		return common.Address{}, fmt.Errorf("arbitrator: create market %s: REP %s below no-show bond %s: %w",
			questionID.Hex(), rep.Dec(), noShow.Dec(), domain.ErrInsufficientBond)
	}
	validity := b.universe.GetOrCacheValidityBond()
	value := msg.ValueOrZero()
	if value.Lt(validity) {
		return common.Address{}, fmt.Errorf("arbitrator: create market %s: value %s below validity bond %s: %w",
			questionID.Hex(), value.Dec(), validity.Dec(), domain.ErrInsufficientBond)
	}

	if err := b.ledger.Transfer(b.address, b.universe.Address(), value); err != nil {
		return common.Address{}, fmt.Errorf("arbitrator: create market %s: forward validity bond: %w", questionID.Hex(), err)
	}
	market, err := b.universe.CreateYesNoMarket(
		domain.Msg{Sender: b.address, Value: value.Clone()},
		b.clock.Now()+1,
		new(uint256.Int),
		b.marketToken,
		p.DesignatedReporter,
		common.Hash{},
		p.Question,
		"",
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("arbitrator: create market %s: %w", questionID.Hex(), err)
	}

	req.Market = market.Address()
	req.MarketOwner = msg.Sender
	req.State = domain.ArbitrationMarket
	b.emit(domain.EventMarketCreated, questionID, domain.MarketCreatedData{
		Market:             market.Address(),
		Owner:              msg.Sender,
		DesignatedReporter: p.DesignatedReporter,
		ValidityBond:       value.Clone(),
	})
	b.logger.Info("arbitration market created",
		slog.String("question_id", questionID.Hex()),
		slog.String("market", market.Address().Hex()),
		slog.String("owner", msg.Sender.Hex()),
	)
	return market.Address(), nil
}

// ReportTip identifies the newest entry of a question's answer history.
type ReportTip struct {
	LastHistoryHash          common.Hash
	LastAnswerOrCommitmentID common.Hash
	LastBond                 *uint256.Int
	LastAnswerer             common.Address
	IsCommitment             bool
}

// ReportAnswer pushes the resolved market's verdict into the oracle and pays
// the dispute fee to the market owner. tip must match the oracle's current
// history hash.
func (b *Bridge) ReportAnswer(msg domain.Msg, questionID common.Hash, tip ReportTip) error {
	req, ok := b.requests[questionID]
	if !ok {
		return fmt.Errorf("arbitrator: report %s: %w", questionID.Hex(), domain.ErrArbitrationNotRequested)
	}
	switch req.State {
	case domain.ArbitrationReported:
		return fmt.Errorf("arbitrator: report %s: %w", questionID.Hex(), domain.ErrAlreadyReported)
	case domain.ArbitrationMarket:
	default:
		return fmt.Errorf("arbitrator: report %s: %w", questionID.Hex(), domain.ErrMarketNotCreated)
	}

	market, err := b.universe.Market(req.Market)
	if err != nil {
		return fmt.Errorf("arbitrator: report %s: %w", questionID.Hex(), err)
	}
	if !market.IsFinalized() {
		return fmt.Errorf("arbitrator: report %s: market %s: %w", questionID.Hex(), req.Market.Hex(), domain.ErrMarketNotFinalized)
	}
	answer := AnswerFromMarket(market)

	if err := b.ledger.Transfer(b.address, req.MarketOwner, req.FeePaid); err != nil {
		return fmt.Errorf("arbitrator: report %s: pay market owner: %w", questionID.Hex(), err)
	}
	err = b.oracle.AssignWinnerAndSubmitAnswerByArbitrator(b.self(), questionID, realitio.ArbitrationResult{
		Answer:                   answer,
		PayeeIfWrong:             req.Requester,
		LastHistoryHash:          tip.LastHistoryHash,
		LastAnswerOrCommitmentID: tip.LastAnswerOrCommitmentID,
		LastBond:                 tip.LastBond,
		LastAnswerer:             tip.LastAnswerer,
		IsCommitment:             tip.IsCommitment,
	})
	if err != nil {
		return fmt.Errorf("arbitrator: report %s: %w", questionID.Hex(), err)
	}

	req.State = domain.ArbitrationReported
	req.ReportedAnswer = answer
	b.emit(domain.EventAnswerReported, questionID, domain.AnswerReportedData{
		Market: req.Market,
		Answer: answer,
		Owner:  req.MarketOwner,
		Fee:    req.FeePaid.Clone(),
	})
	b.logger.Info("arbitration answer reported",
		slog.String("question_id", questionID.Hex()),
		slog.String("answer", answer.Hex()),
		slog.String("reporter", msg.Sender.Hex()),
	)
	return nil
}

// RealitioQuestion returns the arbitration record for questionID.
func (b *Bridge) RealitioQuestion(questionID common.Hash) (domain.ArbitrationRequest, error) {
	req, ok := b.requests[questionID]
	if !ok {
		return domain.ArbitrationRequest{}, fmt.Errorf("arbitrator: question %s: %w", questionID.Hex(), domain.ErrNotFound)
	}
	return req.Clone(), nil
}

// RealitioAnswerFromMarket reports whether the market is finalized and the
// oracle answer it maps to.
func (b *Bridge) RealitioAnswerFromMarket(addr common.Address) (bool, common.Hash, error) {
	market, err := b.universe.Market(addr)
	if err != nil {
		return false, common.Hash{}, err
	}
	if !market.IsFinalized() {
		return false, common.Hash{}, nil
	}
	return true, AnswerFromMarket(market), nil
}

func (b *Bridge) self() domain.Msg {
	return domain.Msg{Sender: b.address, Value: new(uint256.Int)}
}

func (b *Bridge) emit(typ domain.EventType, questionID common.Hash, data any) {
	b.emitter.Emit(domain.Event{
		Type:       typ,
		Emitter:    b.address,
		QuestionID: questionID,
		Timestamp:  b.clock.Now(),
		Data:       data,
	})
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
