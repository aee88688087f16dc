package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Universe is the prediction-market engine's configuration and factory.
type Universe interface {
	Address() common.Address
	GetOrCacheValidityBond() *uint256.Int
	GetOrCacheDesignatedReportNoShowBond() *uint256.Int
	GetOrCacheDesignatedReportStake() *uint256.Int
	GetReputationToken() Token
	// CreateYesNoMarket creates a binary market. msg.Value is the validity
	// bond, already moved to the universe; the no-show bond is pulled from
	// msg.Sender in reputation tokens.
	CreateYesNoMarket(msg Msg, endTime uint32, feePerEthInWei *uint256.Int, denominationToken, designatedReporter common.Address, topic common.Hash, description, extraInfo string) (Market, error)
	Market(addr common.Address) (Market, error)
}

// Market is a single prediction market.
type Market interface {
	Address() common.Address
	Description() string
	GetNumTicks() *uint256.Int
	GetEndTime() uint32
	GetDesignatedReporter() common.Address
	DoInitialReport(reporter common.Address, payoutNumerators []*uint256.Int, invalid bool) error
	// GetFeeWindow returns nil until the market has an initial report.
	GetFeeWindow() FeeWindow
	Finalize() error
	IsFinalized() bool
	IsInvalid() bool
	GetWinningPayoutNumerator(outcome int) *uint256.Int
}

// FeeWindow is the dispute period a reported market sits in.
type FeeWindow interface {
	Address() common.Address
	GetStartTime() uint32
	GetEndTime() uint32
}
