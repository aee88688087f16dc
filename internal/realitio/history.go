package realitio

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// verifiedEntry is one claim-record entry whose hash link has been checked.
type verifiedEntry struct {
	Answerer     common.Address
	Bond         *uint256.Int
	Answer       common.Hash
	IsCommitment bool
}

// VerifyHistory checks that rec, ordered newest first, links tip back to the
// empty seed hash. Each entry must hash, together with the history hash
// recorded before it, to the hash after it. Nothing is trusted until the
// whole chain has been checked.
func VerifyHistory(tip common.Hash, rec domain.ClaimRecord) error {
	_, err := verifyHistory(tip, rec)
	return err
}

func verifyHistory(tip common.Hash, rec domain.ClaimRecord) ([]verifiedEntry, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	entries := make([]verifiedEntry, rec.Len())
	current := tip
	for i := range entries {
		prev := rec.HistoryHashes[i]
		bond := cloneOrZero(rec.Bonds[i])
		var isCommitment bool
		switch current {
		case crypto.NextHistoryHash(prev, rec.Answers[i], bond, rec.Answerers[i], false):
		case crypto.NextHistoryHash(prev, rec.Answers[i], bond, rec.Answerers[i], true):
			isCommitment = true
		default:
			return nil, fmt.Errorf("realitio: history entry %d: %w", i, domain.ErrHistoryMismatch)
		}
		entries[i] = verifiedEntry{
			Answerer:     rec.Answerers[i],
			Bond:         bond,
			Answer:       rec.Answers[i],
			IsCommitment: isCommitment,
		}
		current = prev
	}
	if current != (common.Hash{}) {
		return nil, fmt.Errorf("realitio: history stops at %s: %w", current.Hex(), domain.ErrIncompleteHistory)
	}
	return entries, nil
}

// payment is an amount owed to one address by a settlement.
type payment struct {
	To     common.Address
	Amount *uint256.Int
}

// distribute settles a verified history, newest first, against the final
// answer. resolve maps an entry to the answer it stands for and reports
// false for commitments that were never revealed.
//
// Walking back in time, the newest entry carrying the final answer becomes
// payee and takes the bounty. Every older bond is queued for the current
// payee. When an older entry by a different address also carries the final
// answer, it takes over as payee: it receives out of the queue a takeover
// fee equal to its own bond (capped at what is queued), and the previous
// payee is paid the rest. The last payee receives everything still queued
// plus the oldest bond. The payments always add up to the bounty plus every
// bond.
func distribute(entries []verifiedEntry, finalAnswer common.Hash, bounty *uint256.Int, resolve func(verifiedEntry) (common.Hash, bool)) ([]payment, error) {
	var (
		payee     common.Address
		havePayee bool
		out       []payment
	)
	queued := new(uint256.Int)
	lastBond := new(uint256.Int)
	add := func(a, b *uint256.Int) (*uint256.Int, error) {
		sum, overflow := new(uint256.Int).AddOverflow(a, b)
		if overflow {
			return nil, fmt.Errorf("realitio: settle: %w", domain.ErrAmountOverflow)
		}
		return sum, nil
	}

	for _, e := range entries {
		var err error
		if queued, err = add(queued, lastBond); err != nil {
			return nil, err
		}
		lastBond = e.Bond

		answer, known := resolve(e)
		if !known || answer != finalAnswer {
			continue
		}
		switch {
		case !havePayee:
			payee, havePayee = e.Answerer, true
			if queued, err = add(queued, bounty); err != nil {
				return nil, err
			}
		case e.Answerer != payee:
			fee := e.Bond.Clone()
			if queued.Lt(fee) {
				fee = queued.Clone()
			}
			out = append(out, payment{To: payee, Amount: new(uint256.Int).Sub(queued, fee)})
			payee, queued = e.Answerer, fee
		}
	}
	if !havePayee {
		return nil, fmt.Errorf("realitio: no entry carries the final answer: %w", domain.ErrHistoryMismatch)
	}
	total, err := add(queued, lastBond)
	if err != nil {
		return nil, err
	}
	return append(out, payment{To: payee, Amount: total}), nil
}
