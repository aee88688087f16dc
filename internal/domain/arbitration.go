package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ArbitrationState is the bridge's lifecycle for one question.
type ArbitrationState string

const (
	ArbitrationOpen      ArbitrationState = "open"
	ArbitrationRequested ArbitrationState = "arbitration_requested"
	ArbitrationMarket    ArbitrationState = "market_created"
	ArbitrationReported  ArbitrationState = "reported"
)

// ArbitrationRequest tracks a paid request for market-backed arbitration.
type ArbitrationRequest struct {
	QuestionID      common.Hash      `json:"question_id"`
	MaxPreviousBond *uint256.Int     `json:"max_previous_bond"`
	Requester       common.Address   `json:"requester"`
	FeePaid         *uint256.Int     `json:"fee_paid"`
	Market          common.Address   `json:"market"`
	MarketOwner     common.Address   `json:"market_owner"`
	State           ArbitrationState `json:"state"`
	RequestedAt     uint32           `json:"requested_at"`
	ReportedAnswer  common.Hash      `json:"reported_answer"`
}

// Clone returns a deep copy.
func (r *ArbitrationRequest) Clone() ArbitrationRequest {
	out := *r
	out.MaxPreviousBond = cloneAmount(r.MaxPreviousBond)
	out.FeePaid = cloneAmount(r.FeePaid)
	return out
}
