package realitio

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// AskQuestionParams are the inputs that, with the asker, identify a question.
type AskQuestionParams struct {
	TemplateID uint64
	Question   string
	Arbitrator common.Address
	Timeout    uint32
	OpeningTS  uint32
	Nonce      *uint256.Int
}

// AskQuestion registers a question asked by msg.Sender. The attached value
// becomes the initial bounty.
func (r *Realitio) AskQuestion(msg domain.Msg, p AskQuestionParams) (common.Hash, error) {
	if _, err := r.Template(p.TemplateID); err != nil {
		return common.Hash{}, err
	}
	if p.Timeout == 0 || p.Timeout >= maxTimeout {
		return common.Hash{}, fmt.Errorf("realitio: ask question: timeout %d: %w", p.Timeout, domain.ErrInvalidTimeout)
	}
	if p.Arbitrator == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("realitio: ask question: %w", domain.ErrNoArbitrator)
	}
	nonce := p.Nonce
	if nonce == nil {
		nonce = new(uint256.Int)
	}

	contentHash := crypto.ContentHash(p.TemplateID, p.OpeningTS, p.Question)
	id := crypto.QuestionID(contentHash, p.Arbitrator, p.Timeout, msg.Sender, nonce)
	if _, exists := r.questions[id]; exists {
		return common.Hash{}, fmt.Errorf("realitio: ask question %s: %w", id.Hex(), domain.ErrDuplicateQuestion)
	}

	bounty := msg.ValueOrZero().Clone()
	r.questions[id] = &domain.Question{
		ID:          id,
		ContentHash: contentHash,
		TemplateID:  p.TemplateID,
		Text:        p.Question,
		Asker:       msg.Sender,
		Arbitrator:  p.Arbitrator,
		Nonce:       nonce.Clone(),
		OpeningTS:   p.OpeningTS,
		Timeout:     p.Timeout,
		Bounty:      bounty,
		Bond:        new(uint256.Int),
		CreatedAt:   r.clock.Now(),
	}

	r.emit(domain.EventNewQuestion, id, domain.NewQuestionData{
		User:        msg.Sender,
		TemplateID:  p.TemplateID,
		Question:    p.Question,
		ContentHash: contentHash,
		Arbitrator:  p.Arbitrator,
		Timeout:     p.Timeout,
		OpeningTS:   p.OpeningTS,
		Nonce:       nonce.Clone(),
		Bounty:      bounty.Clone(),
	})
	r.logger.Debug("question asked",
		slog.String("question_id", id.Hex()),
		slog.String("asker", msg.Sender.Hex()),
	)
	return id, nil
}

// FundAnswerBounty adds the attached value to an open question's bounty.
func (r *Realitio) FundAnswerBounty(msg domain.Msg, questionID common.Hash) error {
	q, err := r.openQuestion(questionID)
	if err != nil {
		return err
	}
	bounty, overflow := new(uint256.Int).AddOverflow(q.Bounty, msg.ValueOrZero())
	if overflow {
		return fmt.Errorf("realitio: fund bounty: %w", domain.ErrAmountOverflow)
	}
	q.Bounty = bounty
	r.emit(domain.EventFundAnswerBounty, questionID, domain.FundAnswerBountyData{
		Amount: msg.ValueOrZero().Clone(),
		Bounty: bounty.Clone(),
		User:   msg.Sender,
	})
	return nil
}

// Question returns a snapshot of the question.
func (r *Realitio) Question(id common.Hash) (domain.Question, error) {
	q, err := r.question(id)
	if err != nil {
		return domain.Question{}, err
	}
	return q.Clone(), nil
}

// IsFinalized reports whether the question's best answer is final.
func (r *Realitio) IsFinalized(id common.Hash) bool {
	q, ok := r.questions[id]
	return ok && q.FinalizedAt(r.clock.Now())
}

// GetFinalAnswer returns the best answer of a finalized question.
func (r *Realitio) GetFinalAnswer(id common.Hash) (common.Hash, error) {
	q, err := r.question(id)
	if err != nil {
		return common.Hash{}, err
	}
	if !q.FinalizedAt(r.clock.Now()) {
		return common.Hash{}, fmt.Errorf("realitio: final answer %s: %w", id.Hex(), domain.ErrNotYetFinalized)
	}
	return q.BestAnswer, nil
}

// openQuestion returns the question if it accepts answers right now.
func (r *Realitio) openQuestion(id common.Hash) (*domain.Question, error) {
	q, err := r.question(id)
	if err != nil {
		return nil, err
	}
	if q.IsPendingArbitration {
		return nil, fmt.Errorf("realitio: question %s: %w", id.Hex(), domain.ErrQuestionFrozen)
	}
	if err := r.checkNotExpired(q); err != nil {
		return nil, err
	}
	return q, nil
}

// checkNotExpired rejects questions whose answer window has closed or not
// yet opened. Pending arbitration is not checked.
func (r *Realitio) checkNotExpired(q *domain.Question) error {
	now := r.clock.Now()
	if q.FinalizeTS != 0 && q.FinalizeTS <= now {
		return fmt.Errorf("realitio: question %s: %w", q.ID.Hex(), domain.ErrQuestionFinalized)
	}
	if q.OpeningTS > now {
		return fmt.Errorf("realitio: question %s opens at %d: %w", q.ID.Hex(), q.OpeningTS, domain.ErrTooEarly)
	}
	return nil
}
