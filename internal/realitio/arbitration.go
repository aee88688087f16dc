package realitio

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// NotifyOfArbitrationRequest freezes an answered question. Only the
// question's arbitrator may call it; maxPrevious follows the same rule as
// in SubmitAnswer.
func (r *Realitio) NotifyOfArbitrationRequest(msg domain.Msg, questionID common.Hash, requester common.Address, maxPrevious *uint256.Int) error {
	q, err := r.question(questionID)
	if err != nil {
		return err
	}
	if msg.Sender != q.Arbitrator {
		return fmt.Errorf("realitio: notify arbitration: %w", domain.ErrNotArbitrator)
	}
	if _, err := r.openQuestion(questionID); err != nil {
		return err
	}
	if q.Bond.IsZero() {
		return fmt.Errorf("realitio: notify arbitration %s: %w", questionID.Hex(), domain.ErrNotAnswered)
	}
	if err := checkMaxPrevious(q, maxPrevious); err != nil {
		return err
	}

	q.IsPendingArbitration = true
	r.emit(domain.EventNotifyOfArbitrationRequest, questionID, domain.ArbitrationRequestData{
		Requester:   requester,
		MaxPrevious: cloneOrZero(maxPrevious),
	})
	r.logger.Info("question frozen for arbitration",
		slog.String("question_id", questionID.Hex()),
		slog.String("requester", requester.Hex()),
	)
	return nil
}

// ArbitrationResult is the arbitrator's verdict plus the tip of the answer
// history it was decided against.
type ArbitrationResult struct {
	Answer       common.Hash
	PayeeIfWrong common.Address

	LastHistoryHash          common.Hash
	LastAnswerOrCommitmentID common.Hash
	LastBond                 *uint256.Int
	LastAnswerer             common.Address
	IsCommitment             bool
}

// AssignWinnerAndSubmitAnswerByArbitrator settles a frozen question. The Last*
// fields must reproduce the stored history hash. If the last answer equals
// the verdict its answerer is credited with it, otherwise PayeeIfWrong is.
// The verdict is appended to the history with a zero bond and the question
// is final immediately.
func (r *Realitio) AssignWinnerAndSubmitAnswerByArbitrator(msg domain.Msg, questionID common.Hash, res ArbitrationResult) error {
	q, err := r.question(questionID)
	if err != nil {
		return err
	}
	if msg.Sender != q.Arbitrator {
		return fmt.Errorf("realitio: submit arbitration answer: %w", domain.ErrNotArbitrator)
	}
	if !q.IsPendingArbitration {
		return fmt.Errorf("realitio: submit arbitration answer %s: %w", questionID.Hex(), domain.ErrNotPendingArbitration)
	}
	if res.PayeeIfWrong == (common.Address{}) {
		return fmt.Errorf("realitio: submit arbitration answer: %w", domain.ErrZeroAnswerer)
	}

	lastBond := cloneOrZero(res.LastBond)
	tip := crypto.NextHistoryHash(res.LastHistoryHash, res.LastAnswerOrCommitmentID, lastBond, res.LastAnswerer, res.IsCommitment)
	if tip != q.HistoryHash || !lastBond.Eq(q.Bond) {
		return fmt.Errorf("realitio: submit arbitration answer %s: %w", questionID.Hex(), domain.ErrAnswerMismatch)
	}

	lastAnswer, known := res.LastAnswerOrCommitmentID, true
	if res.IsCommitment {
		lastAnswer, known = r.revealedAnswer(res.LastAnswerOrCommitmentID)
	}
	payee := res.PayeeIfWrong
	if known && lastAnswer == res.Answer {
		payee = res.LastAnswerer
	}

	now := r.clock.Now()
	if now == 0 {
		now = 1
	}
	q.IsPendingArbitration = false
	r.addAnswerToHistory(q, res.Answer, payee, new(uint256.Int), false)
	q.BestAnswer = res.Answer
	q.FinalizeTS = now

	r.emit(domain.EventFinalize, questionID, domain.FinalizeData{
		Answer: res.Answer,
		Payee:  payee,
	})
	r.logger.Info("question finalized by arbitrator",
		slog.String("question_id", questionID.Hex()),
		slog.String("answer", res.Answer.Hex()),
		slog.String("payee", payee.Hex()),
	)
	return nil
}

// revealedAnswer returns the answer behind a commitment, and false if the
// commitment was never revealed.
func (r *Realitio) revealedAnswer(commitmentID common.Hash) (common.Hash, bool) {
	c, ok := r.commitments[commitmentID]
	if !ok || !c.IsRevealed {
		return common.Hash{}, false
	}
	return c.RevealedAnswer, true
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
