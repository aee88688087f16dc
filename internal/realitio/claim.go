package realitio

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// settlement is a checked but not yet applied claim.
type settlement struct {
	question *domain.Question
	payments []payment
}

// ClaimWinnings settles a finalized question. rec must hold the complete
// answer history, newest first. Winnings are credited to internal balances;
// Withdraw pays them out. A question can be settled once.
func (r *Realitio) ClaimWinnings(msg domain.Msg, questionID common.Hash, rec domain.ClaimRecord) error {
	s, err := r.planSettlement(questionID, rec)
	if err != nil {
		return err
	}
	return r.applySettlements(msg, []settlement{s})
}

// ClaimMultipleAndWithdraw settles several questions and then withdraws the
// caller's balance. Either every question is settled or none is.
func (r *Realitio) ClaimMultipleAndWithdraw(msg domain.Msg, questionIDs []common.Hash, recs []domain.ClaimRecord) (*uint256.Int, error) {
	if len(questionIDs) != len(recs) {
		return nil, fmt.Errorf("realitio: claim multiple: %w", domain.ErrMismatchedArrays)
	}
	plans := make([]settlement, 0, len(questionIDs))
	seen := make(map[common.Hash]bool, len(questionIDs))
	for i, id := range questionIDs {
		if seen[id] {
			return nil, fmt.Errorf("realitio: claim %s twice: %w", id.Hex(), domain.ErrAlreadyClaimed)
		}
		seen[id] = true
		s, err := r.planSettlement(id, recs[i])
		if err != nil {
			return nil, err
		}
		plans = append(plans, s)
	}
	if err := r.applySettlements(msg, plans); err != nil {
		return nil, err
	}
	return r.Withdraw(msg)
}

// Withdraw pays the caller's whole balance out through the value ledger and
// returns the amount paid.
func (r *Realitio) Withdraw(msg domain.Msg) (*uint256.Int, error) {
	bal := r.BalanceOf(msg.Sender)
	if bal.IsZero() {
		return bal, nil
	}
	if err := r.ledger.Transfer(r.address, msg.Sender, bal); err != nil {
		return nil, fmt.Errorf("realitio: withdraw: %w", err)
	}
	delete(r.balances, msg.Sender)
	r.emit(domain.EventWithdraw, common.Hash{}, domain.WithdrawData{User: msg.Sender, Amount: bal.Clone()})
	return bal, nil
}

// planSettlement checks a claim without changing any state.
func (r *Realitio) planSettlement(questionID common.Hash, rec domain.ClaimRecord) (settlement, error) {
	q, err := r.question(questionID)
	if err != nil {
		return settlement{}, err
	}
	if !q.FinalizedAt(r.clock.Now()) {
		return settlement{}, fmt.Errorf("realitio: claim %s: %w", questionID.Hex(), domain.ErrNotYetFinalized)
	}
	if q.Claimed {
		return settlement{}, fmt.Errorf("realitio: claim %s: %w", questionID.Hex(), domain.ErrAlreadyClaimed)
	}
	entries, err := verifyHistory(q.HistoryHash, rec)
	if err != nil {
		return settlement{}, err
	}
	payments, err := distribute(entries, q.BestAnswer, q.Bounty, r.resolveEntry)
	if err != nil {
		return settlement{}, err
	}
	return settlement{question: q, payments: payments}, nil
}

func (r *Realitio) applySettlements(msg domain.Msg, plans []settlement) error {
	staged := make(map[common.Address]*uint256.Int)
	for _, s := range plans {
		for _, p := range s.payments {
			base, ok := staged[p.To]
			if !ok {
				base = r.BalanceOf(p.To)
			}
			sum, overflow := new(uint256.Int).AddOverflow(base, p.Amount)
			if overflow {
				return fmt.Errorf("realitio: claim %s: %w", s.question.ID.Hex(), domain.ErrAmountOverflow)
			}
			staged[p.To] = sum
		}
	}

	for addr, bal := range staged {
		if !bal.IsZero() {
			r.balances[addr] = bal
		}
	}
	for _, s := range plans {
		s.question.Claimed = true
		s.question.Bounty = new(uint256.Int)
		for _, p := range s.payments {
			if p.Amount.IsZero() {
				continue
			}
			r.emit(domain.EventClaim, s.question.ID, domain.ClaimData{User: p.To, Amount: p.Amount.Clone()})
		}
		r.logger.Debug("winnings claimed",
			slog.String("question_id", s.question.ID.Hex()),
			slog.String("claimer", msg.Sender.Hex()),
			slog.Int("payments", len(s.payments)),
		)
	}
	return nil
}

func (r *Realitio) resolveEntry(e verifiedEntry) (common.Hash, bool) {
	if e.IsCommitment {
		return r.revealedAnswer(e.Answer)
	}
	return e.Answer, true
}
