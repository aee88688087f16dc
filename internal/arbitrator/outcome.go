package arbitrator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// AnswerFromMarket maps a finalized Yes/No market to the oracle's answer
// encoding: Yes is 1, No is 0, and an invalid market or a tie is all ones.
func AnswerFromMarket(m domain.Market) common.Hash {
	if m.IsInvalid() {
		return domain.AnswerInvalid
	}
	no := m.GetWinningPayoutNumerator(0)
	yes := m.GetWinningPayoutNumerator(1)
	switch {
	case yes.Eq(no):
		return domain.AnswerInvalid
	case yes.Gt(no):
		return domain.AnswerYes
	default:
		return domain.AnswerNo
	}
}
