package realitio

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

const (
	openingTS  = 1000000123
	startTime  = openingTS + 1000
	initialBal = 1_000_000
)

var (
	oracleAddr = common.HexToAddress("0x5e7a11")
	arbAddr    = common.HexToAddress("0xa4b")
	asker      = common.HexToAddress("0xa1")
	answerer3  = common.HexToAddress("0xa3")
	answerer4  = common.HexToAddress("0xa4")
	answerer5  = common.HexToAddress("0xa5")
	disputer   = common.HexToAddress("0xa8")
)

type fixture struct {
	t       *testing.T
	clock   *chain.ManualClock
	chain   *chain.Chain
	oracle  *Realitio
	history map[common.Hash][]domain.AnswerEntry
}

func newFixture(t *testing.T) *fixture {
	return newFixtureAt(t, startTime)
}

func newFixtureAt(t *testing.T, now uint32) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := chain.NewManualClock(now)
	c := chain.New(clock, logger)
	for _, addr := range []common.Address{asker, answerer3, answerer4, answerer5, disputer, arbAddr} {
		require.NoError(t, c.Native().Mint(addr, uint256.NewInt(initialBal)))
	}
	return &fixture{
		t:       t,
		clock:   clock,
		chain:   c,
		oracle:  New(oracleAddr, Config{}, clock, c.Native(), c, logger),
		history: make(map[common.Hash][]domain.AnswerEntry),
	}
}

// call runs fn as a call into the oracle and indexes LogNewAnswer events the
// way a history indexer would.
func (f *fixture) call(from common.Address, value uint64, fn func(msg domain.Msg) error) error {
	rcpt, err := f.chain.Execute(from, oracleAddr, uint256.NewInt(value), fn)
	if err != nil {
		return err
	}
	for _, ev := range rcpt.Events {
		if ev.Type != domain.EventNewAnswer {
			continue
		}
		d := ev.Data.(domain.NewAnswerData)
		f.history[ev.QuestionID] = append(f.history[ev.QuestionID], domain.AnswerEntry{
			QuestionID:      ev.QuestionID,
			Seq:             len(f.history[ev.QuestionID]),
			PrevHistoryHash: d.PrevHistoryHash,
			HistoryHash:     d.HistoryHash,
			Answerer:        d.User,
			Bond:            d.Bond,
			Answer:          d.Answer,
			IsCommitment:    d.IsCommitment,
			Timestamp:       ev.Timestamp,
		})
	}
	return nil
}

func (f *fixture) ask(timeout uint32, value uint64) common.Hash {
	f.t.Helper()
	var id common.Hash
	err := f.call(asker, value, func(msg domain.Msg) error {
		var err error
		id, err = f.oracle.AskQuestion(msg, AskQuestionParams{
			TemplateID: 0,
			Question:   "Is this thing on?",
			Arbitrator: arbAddr,
			Timeout:    timeout,
			OpeningTS:  openingTS,
			Nonce:      uint256.NewInt(987654321),
		})
		return err
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) answer(id common.Hash, from common.Address, answer common.Hash, bond uint64) error {
	return f.call(from, bond, func(msg domain.Msg) error {
		return f.oracle.SubmitAnswer(msg, id, answer, nil)
	})
}

func (f *fixture) record(id common.Hash) domain.ClaimRecord {
	return domain.ClaimRecordFromEntries(f.history[id])
}

func (f *fixture) question(id common.Hash) domain.Question {
	f.t.Helper()
	q, err := f.oracle.Question(id)
	require.NoError(f.t, err)
	return q
}

func TestAskQuestion(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 100)

	content := crypto.ContentHash(0, openingTS, "Is this thing on?")
	assert.Equal(t, crypto.QuestionID(content, arbAddr, 30, asker, uint256.NewInt(987654321)), id)

	q := f.question(id)
	assert.Equal(t, content, q.ContentHash)
	assert.Equal(t, uint64(100), q.Bounty.Uint64())
	assert.True(t, q.Bond.IsZero())
	assert.Equal(t, common.Hash{}, q.HistoryHash)
	assert.False(t, q.Answered())
	assert.Equal(t, uint64(100), f.chain.Native().BalanceOf(oracleAddr).Uint64())

	// Same inputs collide on the id.
	err := f.call(asker, 0, func(msg domain.Msg) error {
		_, err := f.oracle.AskQuestion(msg, AskQuestionParams{
			Question: "Is this thing on?", Arbitrator: arbAddr, Timeout: 30,
			OpeningTS: openingTS, Nonce: uint256.NewInt(987654321),
		})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateQuestion)
}

func TestAskQuestionValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		p    AskQuestionParams
		want error
	}{
		{"unknown template", AskQuestionParams{TemplateID: 99, Arbitrator: arbAddr, Timeout: 1}, domain.ErrUnknownTemplate},
		{"zero timeout", AskQuestionParams{Arbitrator: arbAddr}, domain.ErrInvalidTimeout},
		{"timeout a year", AskQuestionParams{Arbitrator: arbAddr, Timeout: maxTimeout}, domain.ErrInvalidTimeout},
		{"no arbitrator", AskQuestionParams{Timeout: 1}, domain.ErrNoArbitrator},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.call(asker, 5, func(msg domain.Msg) error {
				_, err := f.oracle.AskQuestion(msg, tc.p)
				return err
			})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}
	assert.Equal(t, uint64(initialBal), f.chain.Native().BalanceOf(asker).Uint64())
}

func TestCreateTemplate(t *testing.T) {
	f := newFixture(t)
	var id uint64
	require.NoError(t, f.call(asker, 0, func(msg domain.Msg) error {
		var err error
		id, err = f.oracle.CreateTemplate(msg, `{"title": "%s", "type": "bool"}`)
		return err
	}))
	assert.Equal(t, uint64(len(builtinTemplates)), id)
	tpl, err := f.oracle.Template(id)
	require.NoError(t, err)
	assert.Equal(t, asker, tpl.CreatedBy)
}

func TestHistoryHashIsFoldOfAnswers(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)

	type step struct {
		who    common.Address
		answer common.Hash
		bond   uint64
	}
	steps := []step{
		{answerer3, domain.AnswerYes, 321},
		{answerer4, domain.AnswerNo, 642},
		{answerer3, domain.AnswerYes, 1400},
	}
	want := common.Hash{}
	for _, s := range steps {
		require.NoError(t, f.answer(id, s.who, s.answer, s.bond))
		want = crypto.NextHistoryHash(want, s.answer, uint256.NewInt(s.bond), s.who, false)
		assert.Equal(t, want, f.question(id).HistoryHash)
	}

	q := f.question(id)
	assert.Equal(t, domain.AnswerYes, q.BestAnswer)
	assert.Equal(t, uint64(1400), q.Bond.Uint64())
	assert.Equal(t, uint32(startTime+30), q.FinalizeTS)
	assert.Equal(t, uint64(321+642+1400), f.chain.Native().BalanceOf(oracleAddr).Uint64())
	require.NoError(t, VerifyHistory(q.HistoryHash, f.record(id)))
}

func TestBondLadder(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)

	err := f.answer(id, answerer3, domain.AnswerYes, 0)
	assert.ErrorIs(t, err, domain.ErrBondTooLow)

	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 1))
	before := f.question(id).HistoryHash

	err = f.answer(id, answerer4, domain.AnswerNo, 1)
	assert.ErrorIs(t, err, domain.ErrBondTooLow)
	require.NoError(t, f.answer(id, answerer4, domain.AnswerNo, 2))
	err = f.answer(id, answerer3, domain.AnswerYes, 3)
	assert.ErrorIs(t, err, domain.ErrBondTooLow)
	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 4))

	assert.NotEqual(t, before, f.question(id).HistoryHash)
	assert.Len(t, f.history[id], 3)
	// Rejected bonds went back to their senders.
	assert.Equal(t, uint64(initialBal-2), f.chain.Native().BalanceOf(answerer4).Uint64())
	assert.Equal(t, uint64(initialBal-5), f.chain.Native().BalanceOf(answerer3).Uint64())
}

func TestFailedSubmitLeavesHistoryUntouched(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)
	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 10))
	before := f.question(id)

	err := f.answer(id, answerer4, domain.AnswerNo, 15)
	require.ErrorIs(t, err, domain.ErrBondTooLow)

	after := f.question(id)
	assert.Equal(t, before.HistoryHash, after.HistoryHash)
	assert.Equal(t, before.BestAnswer, after.BestAnswer)
	assert.Equal(t, before.FinalizeTS, after.FinalizeTS)
}

func TestSubmitAnswerTooEarly(t *testing.T) {
	f := newFixtureAt(t, openingTS-1)
	id := f.ask(30, 0)

	err := f.answer(id, answerer3, domain.AnswerYes, 10)
	assert.ErrorIs(t, err, domain.ErrTooEarly)

	f.clock.Set(openingTS)
	assert.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 10))
}

func TestMaxPreviousGuardsAgainstRaces(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)
	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 321))

	submit := func(maxPrevious uint64) error {
		return f.call(answerer4, 642, func(msg domain.Msg) error {
			return f.oracle.SubmitAnswer(msg, id, domain.AnswerNo, uint256.NewInt(maxPrevious))
		})
	}
	assert.ErrorIs(t, submit(320), domain.ErrStaleAssumption)
	assert.NoError(t, submit(321))
}

func TestSubmitAnswerForThirdParty(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)

	err := f.call(answerer3, 10, func(msg domain.Msg) error {
		return f.oracle.SubmitAnswerFor(msg, id, domain.AnswerYes, nil, common.Address{})
	})
	assert.ErrorIs(t, err, domain.ErrZeroAnswerer)

	require.NoError(t, f.call(answerer3, 10, func(msg domain.Msg) error {
		return f.oracle.SubmitAnswerFor(msg, id, domain.AnswerYes, nil, answerer5)
	}))
	assert.Equal(t, answerer5, f.history[id][0].Answerer)
}

func TestFinalizationByTimeout(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)
	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 10))

	_, err := f.oracle.GetFinalAnswer(id)
	assert.ErrorIs(t, err, domain.ErrNotYetFinalized)
	assert.False(t, f.oracle.IsFinalized(id))

	f.clock.Advance(30)
	assert.True(t, f.oracle.IsFinalized(id))
	answer, err := f.oracle.GetFinalAnswer(id)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerYes, answer)

	err = f.answer(id, answerer4, domain.AnswerNo, 20)
	assert.ErrorIs(t, err, domain.ErrQuestionFinalized)

	err = f.call(answerer4, 5, func(msg domain.Msg) error {
		return f.oracle.FundAnswerBounty(msg, id)
	})
	assert.ErrorIs(t, err, domain.ErrQuestionFinalized)

	_, err = f.oracle.GetFinalAnswer(common.HexToHash("0xdead"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFreezeInvariant(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)

	notify := func(from common.Address) error {
		return f.call(from, 0, func(msg domain.Msg) error {
			return f.oracle.NotifyOfArbitrationRequest(msg, id, disputer, nil)
		})
	}
	assert.ErrorIs(t, notify(arbAddr), domain.ErrNotAnswered)

	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 10))
	assert.ErrorIs(t, notify(disputer), domain.ErrNotArbitrator)
	require.NoError(t, notify(arbAddr))
	assert.True(t, f.question(id).IsPendingArbitration)

	for i := 0; i < 3; i++ {
		err := f.answer(id, answerer4, domain.AnswerNo, 1000)
		assert.ErrorIs(t, err, domain.ErrQuestionFrozen)
		f.clock.Advance(100)
		assert.False(t, f.oracle.IsFinalized(id))
	}
	assert.ErrorIs(t, notify(arbAddr), domain.ErrQuestionFrozen)
}

// playLadder replays the 321 / 642 / 1400 ladder and arbitration, returning
// the question id.
func playLadder(t *testing.T, f *fixture, final, wrong, verdict common.Hash) common.Hash {
	t.Helper()
	id := f.ask(1, 0)
	require.NoError(t, f.answer(id, answerer3, final, 321))
	require.NoError(t, f.answer(id, answerer4, wrong, 642))
	tipBefore := f.question(id).HistoryHash
	require.NoError(t, f.answer(id, answerer3, final, 1400))

	require.NoError(t, f.call(arbAddr, 0, func(msg domain.Msg) error {
		return f.oracle.NotifyOfArbitrationRequest(msg, id, disputer, nil)
	}))

	res := ArbitrationResult{
		Answer:                   verdict,
		PayeeIfWrong:             disputer,
		LastHistoryHash:          tipBefore,
		LastAnswerOrCommitmentID: final,
		LastBond:                 uint256.NewInt(1400),
		LastAnswerer:             answerer5,
	}
	err := f.call(arbAddr, 0, func(msg domain.Msg) error {
		return f.oracle.AssignWinnerAndSubmitAnswerByArbitrator(msg, id, res)
	})
	require.ErrorIs(t, err, domain.ErrAnswerMismatch)
	require.False(t, f.oracle.IsFinalized(id))

	res.LastAnswerer = answerer3
	require.NoError(t, f.call(arbAddr, 0, func(msg domain.Msg) error {
		return f.oracle.AssignWinnerAndSubmitAnswerByArbitrator(msg, id, res)
	}))
	require.True(t, f.oracle.IsFinalized(id))
	got, err := f.oracle.GetFinalAnswer(id)
	require.NoError(t, err)
	require.Equal(t, verdict, got)
	return id
}

func TestClaimAfterArbitrationLastAnswerCorrect(t *testing.T) {
	f := newFixture(t)
	id := playLadder(t, f, domain.AnswerYes, domain.AnswerNo, domain.AnswerYes)

	last := f.history[id][len(f.history[id])-1]
	assert.Equal(t, answerer3, last.Answerer)
	assert.True(t, last.Bond.IsZero())

	require.NoError(t, f.call(disputer, 0, func(msg domain.Msg) error {
		return f.oracle.ClaimWinnings(msg, id, f.record(id))
	}))
	assert.Equal(t, uint64(321+642+1400), f.oracle.BalanceOf(answerer3).Uint64())
	assert.True(t, f.oracle.BalanceOf(answerer4).IsZero())
	assert.True(t, f.oracle.BalanceOf(disputer).IsZero())
}

func TestClaimAfterArbitrationLastAnswerWrong(t *testing.T) {
	f := newFixture(t)
	id := playLadder(t, f, domain.AnswerNo, domain.AnswerYes, domain.AnswerYes)

	last := f.history[id][len(f.history[id])-1]
	assert.Equal(t, disputer, last.Answerer)

	require.NoError(t, f.call(disputer, 0, func(msg domain.Msg) error {
		return f.oracle.ClaimWinnings(msg, id, f.record(id))
	}))
	// The disputer's claim is taken over by the earlier correct answerer,
	// who pays back its own bond as a takeover fee.
	assert.Equal(t, uint64(1400-642), f.oracle.BalanceOf(disputer).Uint64())
	assert.Equal(t, uint64(642+642+321), f.oracle.BalanceOf(answerer4).Uint64())
	assert.True(t, f.oracle.BalanceOf(answerer3).IsZero())

	total := new(uint256.Int).Add(f.oracle.BalanceOf(disputer), f.oracle.BalanceOf(answerer4))
	assert.Equal(t, uint64(321+642+1400), total.Uint64())

	var paid *uint256.Int
	require.NoError(t, f.call(answerer4, 0, func(msg domain.Msg) error {
		var err error
		paid, err = f.oracle.Withdraw(msg)
		return err
	}))
	assert.Equal(t, uint64(1605), paid.Uint64())
	assert.Equal(t, uint64(initialBal-642+1605), f.chain.Native().BalanceOf(answerer4).Uint64())
	assert.True(t, f.oracle.BalanceOf(answerer4).IsZero())
}

func TestDoubleClaimRejected(t *testing.T) {
	f := newFixture(t)
	id := playLadder(t, f, domain.AnswerYes, domain.AnswerNo, domain.AnswerYes)
	claim := func() error {
		return f.call(answerer3, 0, func(msg domain.Msg) error {
			return f.oracle.ClaimWinnings(msg, id, f.record(id))
		})
	}
	require.NoError(t, claim())
	err := claim()
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.Equal(t, uint64(2363), f.oracle.BalanceOf(answerer3).Uint64())
}

func TestClaimRejectsBadHistory(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 0)
	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 10))
	require.NoError(t, f.answer(id, answerer4, domain.AnswerNo, 20))

	claim := func(rec domain.ClaimRecord) error {
		return f.call(answerer4, 0, func(msg domain.Msg) error {
			return f.oracle.ClaimWinnings(msg, id, rec)
		})
	}
	assert.ErrorIs(t, claim(f.record(id)), domain.ErrNotYetFinalized)
	f.clock.Advance(30)

	forged := f.record(id)
	forged.Bonds[0] = uint256.NewInt(21)
	err := claim(forged)
	assert.ErrorIs(t, err, domain.ErrHistoryMismatch)
	assert.Equal(t, domain.KindIntegrity, domain.KindOf(err))

	truncated := domain.ClaimRecordFromEntries(f.history[id][1:])
	assert.ErrorIs(t, claim(truncated), domain.ErrIncompleteHistory)

	uneven := f.record(id)
	uneven.Answers = uneven.Answers[:1]
	assert.ErrorIs(t, claim(uneven), domain.ErrMismatchedArrays)

	assert.ErrorIs(t, claim(domain.ClaimRecord{}), domain.ErrEmptyHistory)

	require.NoError(t, claim(f.record(id)))
	assert.Equal(t, uint64(30), f.oracle.BalanceOf(answerer4).Uint64())
}

func TestBountyGoesToWinner(t *testing.T) {
	f := newFixture(t)
	id := f.ask(30, 100)
	require.NoError(t, f.call(answerer5, 50, func(msg domain.Msg) error {
		return f.oracle.FundAnswerBounty(msg, id)
	}))
	assert.Equal(t, uint64(150), f.question(id).Bounty.Uint64())

	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 10))
	f.clock.Advance(30)

	require.NoError(t, f.call(answerer3, 0, func(msg domain.Msg) error {
		return f.oracle.ClaimWinnings(msg, id, f.record(id))
	}))
	assert.Equal(t, uint64(160), f.oracle.BalanceOf(answerer3).Uint64())
	assert.True(t, f.question(id).Bounty.IsZero())
	assert.True(t, f.question(id).Claimed)
}

func TestCommitReveal(t *testing.T) {
	f := newFixture(t)
	id := f.ask(80, 0)
	require.NoError(t, f.answer(id, answerer3, domain.AnswerYes, 10))

	commit := func(from common.Address, answer common.Hash, nonce, bond uint64) error {
		return f.call(from, bond, func(msg domain.Msg) error {
			return f.oracle.SubmitAnswerCommitment(msg, id, crypto.AnswerHash(answer, uint256.NewInt(nonce)), nil, common.Address{})
		})
	}
	reveal := func(from common.Address, answer common.Hash, nonce, bond uint64) error {
		return f.call(from, 0, func(msg domain.Msg) error {
			return f.oracle.SubmitAnswerReveal(msg, id, answer, uint256.NewInt(nonce), uint256.NewInt(bond))
		})
	}

	require.NoError(t, commit(answerer4, domain.AnswerNo, 7, 20))
	assert.ErrorIs(t, commit(answerer4, domain.AnswerNo, 7, 20), domain.ErrBondTooLow)
	q := f.question(id)
	assert.Equal(t, uint64(20), q.Bond.Uint64())
	assert.Equal(t, domain.AnswerYes, q.BestAnswer)

	f.clock.Advance(1)
	assert.ErrorIs(t, reveal(answerer4, domain.AnswerNo, 8, 20), domain.ErrNotFound)
	require.NoError(t, reveal(answerer4, domain.AnswerNo, 7, 20))
	assert.ErrorIs(t, reveal(answerer4, domain.AnswerNo, 7, 20), domain.ErrAlreadyRevealed)
	q = f.question(id)
	assert.Equal(t, domain.AnswerNo, q.BestAnswer)
	assert.Equal(t, uint32(startTime+81), q.FinalizeTS)

	require.NoError(t, commit(answerer5, domain.AnswerYes, 9, 40))
	f.clock.Advance(11)
	assert.ErrorIs(t, reveal(answerer5, domain.AnswerYes, 9, 40), domain.ErrRevealTooLate)

	f.clock.Set(startTime + 81)
	answer, err := f.oracle.GetFinalAnswer(id)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerNo, answer)

	require.NoError(t, f.call(answerer4, 0, func(msg domain.Msg) error {
		return f.oracle.ClaimWinnings(msg, id, f.record(id))
	}))
	assert.Equal(t, uint64(70), f.oracle.BalanceOf(answerer4).Uint64())
	assert.True(t, f.oracle.BalanceOf(answerer5).IsZero())
}

func TestDuplicateCommitmentRejected(t *testing.T) {
	f := newFixture(t)
	id := f.ask(80, 0)
	answerHash := crypto.AnswerHash(domain.AnswerYes, uint256.NewInt(1))
	commitID := crypto.CommitmentID(id, answerHash, uint256.NewInt(10))
	f.oracle.commitments[commitID] = &domain.Commitment{ID: commitID, QuestionID: id, RevealTS: startTime + 10}

	err := f.call(answerer3, 10, func(msg domain.Msg) error {
		return f.oracle.SubmitAnswerCommitment(msg, id, answerHash, nil, common.Address{})
	})
	assert.ErrorIs(t, err, domain.ErrCommitmentExists)
}

func TestClaimMultipleAndWithdraw(t *testing.T) {
	f := newFixture(t)
	q1 := f.ask(30, 0)
	require.NoError(t, f.answer(q1, answerer3, domain.AnswerYes, 10))
	f.clock.Advance(1)
	var q2 common.Hash
	require.NoError(t, f.call(asker, 0, func(msg domain.Msg) error {
		var err error
		q2, err = f.oracle.AskQuestion(msg, AskQuestionParams{
			Question: "second", Arbitrator: arbAddr, Timeout: 30, OpeningTS: openingTS,
		})
		return err
	}))
	require.NoError(t, f.answer(q2, answerer3, domain.AnswerNo, 5))
	f.clock.Advance(40)

	claimAll := func(ids ...common.Hash) (*uint256.Int, error) {
		recs := make([]domain.ClaimRecord, len(ids))
		for i, id := range ids {
			recs[i] = f.record(id)
		}
		var paid *uint256.Int
		err := f.call(answerer3, 0, func(msg domain.Msg) error {
			var err error
			paid, err = f.oracle.ClaimMultipleAndWithdraw(msg, ids, recs)
			return err
		})
		return paid, err
	}

	_, err := claimAll(q1, q1)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.False(t, f.question(q1).Claimed)

	paid, err := claimAll(q1, q2)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), paid.Uint64())
	assert.Equal(t, uint64(initialBal), f.chain.Native().BalanceOf(answerer3).Uint64())
	assert.True(t, f.chain.Native().BalanceOf(oracleAddr).IsZero())
}

func TestDistribute(t *testing.T) {
	a, b, c := common.HexToAddress("0x0a"), common.HexToAddress("0x0b"), common.HexToAddress("0x0c")
	yes, no := domain.AnswerYes, domain.AnswerNo
	entry := func(who common.Address, ans common.Hash, bond uint64) verifiedEntry {
		return verifiedEntry{Answerer: who, Answer: ans, Bond: uint256.NewInt(bond)}
	}
	plain := func(e verifiedEntry) (common.Hash, bool) { return e.Answer, true }

	cases := []struct {
		name    string
		entries []verifiedEntry
		bounty  uint64
		want    map[common.Address]uint64
	}{
		{
			name:    "single answer takes bounty",
			entries: []verifiedEntry{entry(a, yes, 5)},
			bounty:  7,
			want:    map[common.Address]uint64{a: 12},
		},
		{
			name:    "loser bond flows to later winner",
			entries: []verifiedEntry{entry(a, yes, 4), entry(b, no, 2), entry(c, no, 1)},
			want:    map[common.Address]uint64{a: 7},
		},
		{
			name:    "takeover fee capped at queued funds",
			entries: []verifiedEntry{entry(a, yes, 0), entry(b, no, 100), entry(c, yes, 500)},
			want:    map[common.Address]uint64{a: 0, c: 600},
		},
		{
			name:    "same address keeps the queue",
			entries: []verifiedEntry{entry(a, yes, 8), entry(a, yes, 4), entry(b, no, 2), entry(a, yes, 1)},
			bounty:  3,
			want:    map[common.Address]uint64{a: 18},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pays, err := distribute(tc.entries, yes, uint256.NewInt(tc.bounty), plain)
			require.NoError(t, err)

			got := make(map[common.Address]uint64)
			var sum, total uint64
			for _, p := range pays {
				got[p.To] += p.Amount.Uint64()
				sum += p.Amount.Uint64()
			}
			for _, e := range tc.entries {
				total += e.Bond.Uint64()
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, total+tc.bounty, sum)
		})
	}

	_, err := distribute([]verifiedEntry{entry(a, no, 1)}, yes, new(uint256.Int), plain)
	assert.ErrorIs(t, err, domain.ErrHistoryMismatch)
}
