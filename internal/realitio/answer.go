package realitio

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// SubmitAnswer records answer for msg.Sender with the attached value as bond.
// maxPrevious, when non-zero, aborts the call if the current bond has
// already risen above it.
func (r *Realitio) SubmitAnswer(msg domain.Msg, questionID, answer common.Hash, maxPrevious *uint256.Int) error {
	return r.SubmitAnswerFor(msg, questionID, answer, maxPrevious, msg.Sender)
}

// SubmitAnswerFor is SubmitAnswer with the bond credited to answerer instead
// of the caller.
func (r *Realitio) SubmitAnswerFor(msg domain.Msg, questionID, answer common.Hash, maxPrevious *uint256.Int, answerer common.Address) error {
	if answerer == (common.Address{}) {
		return fmt.Errorf("realitio: submit answer: %w", domain.ErrZeroAnswerer)
	}
	q, err := r.openQuestion(questionID)
	if err != nil {
		return err
	}
	bond := msg.ValueOrZero()
	if err := r.checkBond(q, bond); err != nil {
		return err
	}
	if err := checkMaxPrevious(q, maxPrevious); err != nil {
		return err
	}
	finalizeTS, err := r.deadline(q.Timeout)
	if err != nil {
		return err
	}

	r.addAnswerToHistory(q, answer, answerer, bond, false)
	q.BestAnswer = answer
	q.FinalizeTS = finalizeTS
	return nil
}

// SubmitAnswerCommitment records a hidden answer. answerHash is
// crypto.AnswerHash(answer, nonce); the attached value is the bond. A zero
// answerer means msg.Sender.
func (r *Realitio) SubmitAnswerCommitment(msg domain.Msg, questionID, answerHash common.Hash, maxPrevious *uint256.Int, answerer common.Address) error {
	if answerer == (common.Address{}) {
		answerer = msg.Sender
	}
	q, err := r.openQuestion(questionID)
	if err != nil {
		return err
	}
	bond := msg.ValueOrZero()
	if err := r.checkBond(q, bond); err != nil {
		return err
	}
	if err := checkMaxPrevious(q, maxPrevious); err != nil {
		return err
	}

	id := crypto.CommitmentID(questionID, answerHash, bond)
	if _, exists := r.commitments[id]; exists {
		return fmt.Errorf("realitio: commitment %s: %w", id.Hex(), domain.ErrCommitmentExists)
	}
	revealTS, err := r.deadline(q.Timeout / r.cfg.CommitmentTimeoutRatio)
	if err != nil {
		return err
	}

	r.commitments[id] = &domain.Commitment{
		ID:         id,
		QuestionID: questionID,
		RevealTS:   revealTS,
	}
	r.addAnswerToHistory(q, id, answerer, bond, true)
	return nil
}

// SubmitAnswerReveal opens a commitment. If the commitment still carries the
// highest bond its answer becomes the best answer. Reveals are accepted while
// arbitration is pending.
func (r *Realitio) SubmitAnswerReveal(msg domain.Msg, questionID, answer common.Hash, nonce, bond *uint256.Int) error {
	q, err := r.question(questionID)
	if err != nil {
		return err
	}
	if err := r.checkNotExpired(q); err != nil {
		return err
	}

	answerHash := crypto.AnswerHash(answer, nonce)
	id := crypto.CommitmentID(questionID, answerHash, bond)
	c, ok := r.commitments[id]
	if !ok {
		return fmt.Errorf("realitio: commitment %s: %w", id.Hex(), domain.ErrNotFound)
	}
	if c.IsRevealed {
		return fmt.Errorf("realitio: commitment %s: %w", id.Hex(), domain.ErrAlreadyRevealed)
	}
	if c.RevealTS <= r.clock.Now() {
		return fmt.Errorf("realitio: commitment %s: %w", id.Hex(), domain.ErrRevealTooLate)
	}

	var finalizeTS uint32
	isBest := bond.Eq(q.Bond)
	if isBest {
		if finalizeTS, err = r.deadline(q.Timeout); err != nil {
			return err
		}
	}

	c.IsRevealed = true
	c.RevealedAnswer = answer
	if isBest {
		q.BestAnswer = answer
		q.FinalizeTS = finalizeTS
	}
	r.emit(domain.EventAnswerReveal, questionID, domain.AnswerRevealData{
		User:         msg.Sender,
		AnswerHash:   answerHash,
		CommitmentID: id,
		Nonce:        nonce.Clone(),
		Bond:         bond.Clone(),
		Answer:       answer,
	})
	return nil
}

// Commitment returns a snapshot of a commitment.
func (r *Realitio) Commitment(id common.Hash) (domain.Commitment, error) {
	c, ok := r.commitments[id]
	if !ok {
		return domain.Commitment{}, fmt.Errorf("realitio: commitment %s: %w", id.Hex(), domain.ErrNotFound)
	}
	return *c, nil
}

// checkBond enforces the ladder: the first bond must be positive, every later
// one strictly above and at least BondMultiplier times the current bond.
func (r *Realitio) checkBond(q *domain.Question, bond *uint256.Int) error {
	if bond.IsZero() {
		return fmt.Errorf("realitio: bond must be positive: %w", domain.ErrBondTooLow)
	}
	if q.Bond.IsZero() {
		return nil
	}
	required, overflow := new(uint256.Int).MulOverflow(q.Bond, uint256.NewInt(r.cfg.BondMultiplier))
	if overflow || !bond.Gt(q.Bond) || bond.Lt(required) {
		return fmt.Errorf("realitio: bond %s below required %s: %w", bond.Dec(), required.Dec(), domain.ErrBondTooLow)
	}
	return nil
}

// checkMaxPrevious fails when the caller's view of the current bond is stale.
// Zero disables the check.
func checkMaxPrevious(q *domain.Question, maxPrevious *uint256.Int) error {
	if maxPrevious == nil || maxPrevious.IsZero() {
		return nil
	}
	if q.Bond.Gt(maxPrevious) {
		return fmt.Errorf("realitio: current bond %s exceeds %s: %w", q.Bond.Dec(), maxPrevious.Dec(), domain.ErrStaleAssumption)
	}
	return nil
}

// addAnswerToHistory folds one entry into the question's history hash and
// makes bond the current bond.
func (r *Realitio) addAnswerToHistory(q *domain.Question, answerOrCommitmentID common.Hash, answerer common.Address, bond *uint256.Int, isCommitment bool) {
	prev := q.HistoryHash
	next := crypto.NextHistoryHash(prev, answerOrCommitmentID, bond, answerer, isCommitment)
	q.HistoryHash = next
	q.Bond = bond.Clone()

	r.emit(domain.EventNewAnswer, q.ID, domain.NewAnswerData{
		Answer:          answerOrCommitmentID,
		User:            answerer,
		PrevHistoryHash: prev,
		HistoryHash:     next,
		Bond:            bond.Clone(),
		IsCommitment:    isCommitment,
	})
}

// deadline returns now+d, rejecting timestamps past the uint32 range.
func (r *Realitio) deadline(d uint32) (uint32, error) {
	ts := uint64(r.clock.Now()) + uint64(d)
	if ts > math.MaxUint32 {
		return 0, fmt.Errorf("realitio: deadline overflows: %w", domain.ErrInvalidTimeout)
	}
	return uint32(ts), nil
}
