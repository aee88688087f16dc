package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Clock supplies the current block timestamp in epoch seconds.
type Clock interface {
	Now() uint32
}

// Msg carries the caller and the native value attached to a call. The value
// has already been moved to the callee when the call runs.
type Msg struct {
	Sender common.Address
	Value  *uint256.Int
}

// ValueOrZero returns the attached value, treating nil as zero.
func (m Msg) ValueOrZero() *uint256.Int {
	if m.Value == nil {
		return new(uint256.Int)
	}
	return m.Value
}

// ValueLedger moves native value between accounts.
type ValueLedger interface {
	BalanceOf(addr common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// Token is a fungible staking token (ERC20 subset).
type Token interface {
	Address() common.Address
	BalanceOf(addr common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// EventEmitter receives events emitted during a call. Events emitted by a
// call that later fails are discarded.
type EventEmitter interface {
	Emit(ev Event)
}
