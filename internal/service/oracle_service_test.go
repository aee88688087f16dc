package service

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/realityarb/internal/arbitrator"
	rediscache "github.com/alanyoungcy/realityarb/internal/cache/redis"
	"github.com/alanyoungcy/realityarb/internal/cache/redis/redistest"
	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/platform/augur"
	"github.com/alanyoungcy/realityarb/internal/realitio"
)

const (
	startTime  = 1_000_000
	disputeFee = 1000
	validity   = 500
	noShow     = 30
	stake      = 40
)

var (
	alice    = common.HexToAddress("0xa1")
	bob      = common.HexToAddress("0xa2")
	disputer = common.HexToAddress("0xa8")
	owner    = common.HexToAddress("0xa9")
	reporter = common.HexToAddress("0xaa")
)

type fixture struct {
	t         *testing.T
	svc       *OracleService
	index     *HistoryIndexer
	questions *memQuestions
	arbs      *memArbitrations
	archive   *memArchive
	audit     *memAudit
	notifier  *recordingNotifier
	bus       *rediscache.SignalBus
	locks     *rediscache.LockManager
	signer    *crypto.Signer

	cancel context.CancelFunc
	done   chan error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := discardLogger()

	signer, err := crypto.GenerateSigner()
	require.NoError(t, err)
	client, _ := redistest.New(t)

	clock := chain.NewManualClock(startTime)
	dep := Deploy(DeployConfig{
		Addresses:  DeployAddresses(signer),
		Clock:      clock,
		Arbitrator: arbitrator.Config{DisputeFee: uint256.NewInt(disputeFee)},
		Augur: augur.Config{
			ValidityBond:          uint256.NewInt(validity),
			NoShowBond:            uint256.NewInt(noShow),
			DesignatedReportStake: uint256.NewInt(stake),
			NumTicks:              10000,
			DisputeWindow:         3600,
		},
	}, logger)

	f := &fixture{
		t:         t,
		questions: &memQuestions{},
		arbs:      &memArbitrations{},
		archive:   &memArchive{},
		audit:     &memAudit{},
		notifier:  &recordingNotifier{},
		bus:       rediscache.NewSignalBus(client, 0),
		locks:     rediscache.NewLockManager(client, 0),
		signer:    signer,
		done:      make(chan error, 1),
	}
	f.index = NewHistoryIndexer(newMemAnswers(), logger)

	dispatcher := NewEventDispatcher(logger)
	f.svc = NewOracleService(OracleDeps{
		Deployment: dep,
		Index:      f.index,
		Dispatcher: dispatcher,
		Clock:      clock,
		Locks:      f.locks,
		Logger:     logger,
	})
	dispatcher.Inline(f.index)
	dispatcher.Subscribe(NewEventPublisher(PublisherDeps{
		Bus:      f.bus,
		Audit:    f.audit,
		Notifier: f.notifier,
		Signer:   signer,
	}, logger), 0)
	dispatcher.Subscribe(NewSnapshotRecorder(f.svc, f.questions, f.arbs, logger), 0)
	dispatcher.Subscribe(NewHistoryArchiver(f.archive, f.svc, f.index, logger), 0)

	for _, a := range []common.Address{alice, bob, disputer, owner} {
		require.NoError(t, f.svc.Mint(a, uint256.NewInt(100_000), nil))
	}
	require.NoError(t, f.svc.Mint(f.svc.Contracts().Arbitrator, nil, uint256.NewInt(noShow)))
	require.NoError(t, f.svc.Mint(reporter, nil, uint256.NewInt(stake)))

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- dispatcher.Run(ctx) }()
	t.Cleanup(f.stop)
	return f
}

// stop shuts the dispatcher down, delivering everything still queued.
func (f *fixture) stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.cancel = nil
	select {
	case err := <-f.done:
		require.NoError(f.t, err)
	case <-time.After(5 * time.Second):
		f.t.Fatal("dispatcher did not stop")
	}
}

func (f *fixture) ask(timeout uint32, bounty uint64) common.Hash {
	id, rcpt, err := f.svc.AskQuestion(context.Background(), alice, uint256.NewInt(bounty), realitio.AskQuestionParams{
		TemplateID: 0,
		Question:   "Did it happen?",
		Arbitrator: f.svc.Contracts().Arbitrator,
		Timeout:    timeout,
		Nonce:      uint256.NewInt(1),
	})
	require.NoError(f.t, err)
	require.Len(f.t, rcpt.Events, 1)
	return id
}

func (f *fixture) answer(id common.Hash, from common.Address, answer common.Hash, bond uint64) {
	_, err := f.svc.SubmitAnswer(context.Background(), from, uint256.NewInt(bond), id, answer, nil, common.Address{})
	require.NoError(f.t, err)
}

func TestArbitrationEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.ask(3600, 100)
	f.answer(id, alice, domain.AnswerYes, 10)
	f.answer(id, bob, domain.AnswerNo, 20)

	fee := f.svc.DisputeFee(id)
	assert.Equal(t, uint64(disputeFee), fee.Uint64())
	_, err := f.svc.RequestArbitration(ctx, disputer, fee, id, uint256.NewInt(20))
	require.NoError(t, err)

	// The question is frozen: answers are rejected until the verdict.
	_, err = f.svc.SubmitAnswer(ctx, alice, uint256.NewInt(40), id, domain.AnswerYes, nil, common.Address{})
	require.ErrorIs(t, err, domain.ErrQuestionFrozen)

	params, err := f.svc.MarketParams(ctx, id, reporter)
	require.NoError(t, err)
	validityBond, _ := f.svc.MarketBonds()
	market, _, err := f.svc.CreateMarket(ctx, owner, validityBond, params)
	require.NoError(t, err)

	view, err := f.svc.Market(market)
	require.NoError(t, err)
	_, err = f.svc.SetTime(ctx, view.EndTime)
	require.NoError(t, err)
	payout, invalid := PayoutFor(domain.AnswerYes, view.NumTicks)
	_, err = f.svc.ReportMarket(ctx, reporter, market, payout, invalid)
	require.NoError(t, err)

	view, err = f.svc.Market(market)
	require.NoError(t, err)
	_, err = f.svc.FinalizeMarket(ctx, owner, market)
	require.ErrorIs(t, err, domain.ErrFeeWindowOpen)
	_, err = f.svc.SetTime(ctx, view.FeeWindowEnd+1)
	require.NoError(t, err)
	_, err = f.svc.FinalizeMarket(ctx, owner, market)
	require.NoError(t, err)

	_, err = f.svc.ReportAnswer(ctx, bob, id, nil)
	require.NoError(t, err)
	assert.True(t, f.svc.IsFinalized(id))
	final, err := f.svc.FinalAnswer(id)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerYes, final)

	// Bob answered wrong last, so the requester takes his place; Alice's
	// earlier correct answer takes over the payee role for a fee equal to her
	// bond.
	_, err = f.svc.ClaimWinnings(ctx, owner, id, nil)
	require.NoError(t, err)
	assert.Equal(t, "110", f.svc.Balances(disputer).Claimable.Dec())
	assert.Equal(t, "20", f.svc.Balances(alice).Claimable.Dec())
	assert.True(t, f.svc.Balances(bob).Claimable.IsZero())

	_, err = f.svc.ClaimWinnings(ctx, owner, id, nil)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	paid, _, err := f.svc.Withdraw(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "20", paid.Dec())
	// 100000 - 100 bounty - 10 bond + 20 winnings.
	assert.Equal(t, "99910", f.svc.Balances(alice).Native.Dec())
	// The market owner collected the dispute fee.
	assert.Equal(t, "100500", f.svc.Balances(owner).Native.Dec())

	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, disputer, history[2].Answerer)
	assert.True(t, history[2].Bond.IsZero())

	f.stop()

	saved, err := f.archive.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.archive.puts, "one archive per claiming call")
	assert.Len(t, saved.Entries, 3)
	assert.Len(t, saved.Payouts, 2)
	assert.True(t, saved.Question.Claimed)

	q, err := f.questions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, q.Claimed)
	req, err := f.arbs.GetByQuestion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ArbitrationReported, req.State)
	assert.Equal(t, domain.AnswerYes, req.ReportedAnswer)

	assert.Contains(t, f.audit.snapshot(), "event."+string(domain.EventAnswerReported))
	assert.Contains(t, f.notifier.snapshot(), domain.EventNotifyOfArbitrationRequest)

	msgs, err := f.bus.StreamRead(ctx, EventStream, "0", 100)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	first, from, err := OpenEnvelope(msgs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, f.signer.Address(), from)
	assert.Equal(t, domain.EventNewQuestion, first.Type)
}

func TestLockedQuestionRejectsMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.ask(3600, 0)

	unlock, err := f.locks.Acquire(ctx, "question:"+id.Hex(), time.Minute)
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, bob, uint256.NewInt(10), id, domain.AnswerNo, nil, common.Address{})
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.True(t, f.svc.Balances(bob).Native.Eq(uint256.NewInt(100_000)), "nothing was charged")

	unlock()
	f.answer(id, bob, domain.AnswerNo, 10)
}

func TestCreateMarketTakesQuestionLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.ask(3600, 0)
	f.answer(id, alice, domain.AnswerYes, 10)
	_, err := f.svc.RequestArbitration(ctx, disputer, f.svc.DisputeFee(id), id, nil)
	require.NoError(t, err)

	params, err := f.svc.MarketParams(ctx, id, reporter)
	require.NoError(t, err)
	validityBond, _ := f.svc.MarketBonds()

	unlock, err := f.locks.Acquire(ctx, "question:"+id.Hex(), time.Minute)
	require.NoError(t, err)
	_, _, err = f.svc.CreateMarket(ctx, owner, validityBond, params)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	_, _, err = f.svc.CreateMarket(ctx, owner, validityBond, params)
	require.NoError(t, err)
}

func TestFailedCallDispatchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.ask(3600, 0)
	f.answer(id, alice, domain.AnswerYes, 10)

	_, err := f.svc.SubmitAnswer(ctx, bob, uint256.NewInt(15), id, domain.AnswerNo, nil, common.Address{})
	require.ErrorIs(t, err, domain.ErrBondTooLow)

	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestClaimMultipleAndWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.ask(60, 5)
	f.answer(first, bob, domain.AnswerYes, 10)

	second, _, err := f.svc.AskQuestion(ctx, alice, nil, realitio.AskQuestionParams{
		Question:   "Second?",
		Arbitrator: f.svc.Contracts().Arbitrator,
		Timeout:    60,
		Nonce:      uint256.NewInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.QuestionID(crypto.ContentHash(0, 0, "Second?"), f.svc.Contracts().Arbitrator, 60, alice, uint256.NewInt(2)), second)
	f.answer(second, bob, domain.AnswerNo, 10)

	_, _, err = f.svc.ClaimMultipleAndWithdraw(ctx, bob, []common.Hash{first, second})
	require.ErrorIs(t, err, domain.ErrNotYetFinalized)

	_, err = f.svc.AdvanceTime(ctx, 61)
	require.NoError(t, err)
	paid, _, err := f.svc.ClaimMultipleAndWithdraw(ctx, bob, []common.Hash{first, second})
	require.NoError(t, err)
	assert.Equal(t, "25", paid.Dec())
	assert.Equal(t, "100005", f.svc.Balances(bob).Native.Dec())
}

func TestCommitRevealThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.ask(800, 0)

	nonce := uint256.NewInt(42)
	answerHash := crypto.AnswerHash(domain.AnswerYes, nonce)
	_, err := f.svc.SubmitAnswerCommitment(ctx, bob, uint256.NewInt(10), id, answerHash, nil, common.Address{})
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswerReveal(ctx, bob, id, domain.AnswerYes, nonce, uint256.NewInt(10))
	require.NoError(t, err)

	c, err := f.svc.Commitment(crypto.CommitmentID(id, answerHash, uint256.NewInt(10)))
	require.NoError(t, err)
	assert.True(t, c.IsRevealed)

	q, err := f.svc.Question(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerYes, q.BestAnswer)

	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsCommitment)
}

func TestSimulatedClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now, err := f.svc.AdvanceTime(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(startTime+10), now)

	_, err = f.svc.SetTime(ctx, startTime)
	require.ErrorIs(t, err, domain.ErrTimeBackwards)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	fixed := NewOracleService(OracleDeps{
		Deployment: Deploy(DeployConfig{Clock: chain.SystemClock{}}, discardLogger()),
		Index:      NewHistoryIndexer(nil, discardLogger()),
		Dispatcher: NewEventDispatcher(discardLogger()),
		Logger:     discardLogger(),
	})
	_, err = fixed.AdvanceTime(ctx, 1)
	require.ErrorIs(t, err, domain.ErrClockFixed)
}

func TestPayoutFor(t *testing.T) {
	ticks := uint256.NewInt(10000)

	p, invalid := PayoutFor(domain.AnswerYes, ticks)
	assert.False(t, invalid)
	assert.Equal(t, []uint64{0, 10000}, []uint64{p[0].Uint64(), p[1].Uint64()})

	p, invalid = PayoutFor(domain.AnswerNo, ticks)
	assert.False(t, invalid)
	assert.Equal(t, []uint64{10000, 0}, []uint64{p[0].Uint64(), p[1].Uint64()})

	p, invalid = PayoutFor(domain.AnswerInvalid, ticks)
	assert.True(t, invalid)
	assert.Equal(t, []uint64{5000, 5000}, []uint64{p[0].Uint64(), p[1].Uint64()})
}
