package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// Contracts lists the deployed addresses.
type Contracts struct {
	Oracle      common.Address `json:"oracle"`
	Arbitrator  common.Address `json:"arbitrator"`
	Universe    common.Address `json:"universe"`
	REP         common.Address `json:"rep"`
	MarketToken common.Address `json:"market_token"`
}

// Balances are an account's holdings across the ledger and the oracle.
type Balances struct {
	Address common.Address `json:"address"`
	Native  *uint256.Int   `json:"native"`
	// Claimable is the oracle balance Withdraw would pay out.
	Claimable *uint256.Int `json:"claimable"`
	REP       *uint256.Int `json:"rep"`
}

// MarketView is a read-only summary of a market.
type MarketView struct {
	Address            common.Address `json:"address"`
	Description        string         `json:"description"`
	EndTime            uint32         `json:"end_time"`
	DesignatedReporter common.Address `json:"designated_reporter"`
	NumTicks           *uint256.Int   `json:"num_ticks"`
	FeeWindowEnd       uint32         `json:"fee_window_end,omitempty"`
	Finalized          bool           `json:"finalized"`
	Invalid            bool           `json:"invalid"`
	// Answer is the oracle answer the market maps to once finalized.
	Answer *common.Hash `json:"answer,omitempty"`
}

// Contracts returns the deployed addresses.
func (s *OracleService) Contracts() Contracts {
	return Contracts{
		Oracle:      s.oracle.Address(),
		Arbitrator:  s.bridge.Address(),
		Universe:    s.universe.Address(),
		REP:         s.rep.Address(),
		MarketToken: s.bridge.MarketToken(),
	}
}

// Now returns the chain's current timestamp.
func (s *OracleService) Now() uint32 {
	return s.chain.Clock().Now()
}

// Block returns the number of committed calls.
func (s *OracleService) Block() uint64 {
	return s.chain.Block()
}

// Question returns a question snapshot.
func (s *OracleService) Question(_ context.Context, id common.Hash) (domain.Question, error) {
	var (
		q   domain.Question
		err error
	)
	s.chain.View(func() { q, err = s.oracle.Question(id) })
	return q, err
}

// IsFinalized reports whether a question's answer is final.
func (s *OracleService) IsFinalized(id common.Hash) bool {
	var ok bool
	s.chain.View(func() { ok = s.oracle.IsFinalized(id) })
	return ok
}

// FinalAnswer returns the answer of a finalized question.
func (s *OracleService) FinalAnswer(id common.Hash) (common.Hash, error) {
	var (
		a   common.Hash
		err error
	)
	s.chain.View(func() { a, err = s.oracle.GetFinalAnswer(id) })
	return a, err
}

// Template returns a registered template.
func (s *OracleService) Template(id uint64) (domain.Template, error) {
	var (
		t   domain.Template
		err error
	)
	s.chain.View(func() { t, err = s.oracle.Template(id) })
	return t, err
}

// Commitment returns a hidden answer by commitment id.
func (s *OracleService) Commitment(id common.Hash) (domain.Commitment, error) {
	var (
		c   domain.Commitment
		err error
	)
	s.chain.View(func() { c, err = s.oracle.Commitment(id) })
	return c, err
}

// History returns a question's answer log, oldest first.
func (s *OracleService) History(ctx context.Context, id common.Hash) ([]domain.AnswerEntry, error) {
	return s.index.History(ctx, id)
}

// ClaimRecord returns the claim arrays for a question, newest first.
func (s *OracleService) ClaimRecord(ctx context.Context, id common.Hash) (domain.ClaimRecord, error) {
	return s.index.ClaimRecord(ctx, id)
}

// Balances returns addr's holdings.
func (s *OracleService) Balances(addr common.Address) Balances {
	b := Balances{Address: addr}
	s.chain.View(func() {
		b.Native = s.chain.Native().BalanceOf(addr)
		b.Claimable = s.oracle.BalanceOf(addr)
		b.REP = s.rep.BalanceOf(addr)
	})
	return b
}

// ArbitrationRequest returns the bridge's record for a question.
func (s *OracleService) ArbitrationRequest(_ context.Context, questionID common.Hash) (domain.ArbitrationRequest, error) {
	var (
		r   domain.ArbitrationRequest
		err error
	)
	s.chain.View(func() { r, err = s.bridge.RealitioQuestion(questionID) })
	return r, err
}

// DisputeFee returns the fee to request arbitration of a question.
func (s *OracleService) DisputeFee(questionID common.Hash) *uint256.Int {
	var fee *uint256.Int
	s.chain.View(func() { fee = s.bridge.GetDisputeFee(questionID) })
	return fee
}

// MarketBonds returns the validity bond attached to CreateMarket and the
// no-show bond the bridge must hold in REP.
func (s *OracleService) MarketBonds() (validity, noShow *uint256.Int) {
	s.chain.View(func() {
		validity = s.universe.GetOrCacheValidityBond()
		noShow = s.universe.GetOrCacheDesignatedReportNoShowBond()
	})
	return validity, noShow
}

// Market returns a market summary.
func (s *OracleService) Market(addr common.Address) (MarketView, error) {
	var (
		v   MarketView
		err error
	)
	s.chain.View(func() {
		var m domain.Market
		if m, err = s.universe.Market(addr); err != nil {
			return
		}
		v = MarketView{
			Address:            m.Address(),
			Description:        m.Description(),
			EndTime:            m.GetEndTime(),
			DesignatedReporter: m.GetDesignatedReporter(),
			NumTicks:           m.GetNumTicks(),
			Finalized:          m.IsFinalized(),
			Invalid:            m.IsInvalid(),
		}
		if w := m.GetFeeWindow(); w != nil {
			v.FeeWindowEnd = w.GetEndTime()
		}
		var (
			final  bool
			answer common.Hash
		)
		final, answer, err = s.bridge.RealitioAnswerFromMarket(addr)
		if final {
			v.Answer = &answer
		}
	})
	return v, err
}

// Compile-time interface checks.
var (
	_ StateReader   = (*OracleService)(nil)
	_ HistorySource = (*HistoryIndexer)(nil)
	_ Subscriber    = (*HistoryIndexer)(nil)
	_ Subscriber    = (*EventPublisher)(nil)
	_ Subscriber    = (*SnapshotRecorder)(nil)
	_ Subscriber    = (*HistoryArchiver)(nil)
	_ Flusher       = (*SnapshotRecorder)(nil)
	_ Flusher       = (*HistoryArchiver)(nil)
)
