// Package chain is the in-process ledger the oracle contracts run against.
// It provides native value and staking-token balances, a clock, and a single
// global sequencer that makes every call all-or-nothing.
package chain

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// Receipt describes a committed call.
type Receipt struct {
	Block     uint64         `json:"block"`
	Timestamp uint32         `json:"timestamp"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Value     *uint256.Int   `json:"value"`
	Events    []domain.Event `json:"events"`
}

// Chain serializes every state transition. Contracts built on it are not
// safe for concurrent use on their own: mutate them inside Execute and read
// them inside View.
type Chain struct {
	mu     sync.Mutex
	clock  domain.Clock
	logger *slog.Logger

	native *Ledger
	tokens map[common.Address]*Token
	block  uint64

	// Per-call scratch, only touched while mu is held.
	inCall  bool
	journal []func()
	pending []domain.Event
}

// New creates an empty chain reading time from clock.
func New(clock domain.Clock, logger *slog.Logger) *Chain {
	c := &Chain{
		clock:  clock,
		logger: logger.With(slog.String("component", "chain")),
		tokens: make(map[common.Address]*Token),
	}
	c.native = &Ledger{accounts: newAccounts(c)}
	return c
}

// Clock returns the chain's clock.
func (c *Chain) Clock() domain.Clock { return c.clock }

// Native returns the native value ledger.
func (c *Chain) Native() *Ledger { return c.native }

// Block returns the number of committed calls.
func (c *Chain) Block() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

// NewToken registers a staking token at addr. Registering an address twice
// returns the existing token.
func (c *Chain) NewToken(addr common.Address, symbol string) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tokens[addr]; ok {
		return t
	}
	t := &Token{accounts: newAccounts(c), address: addr, symbol: symbol}
	c.tokens[addr] = t
	return t
}

// Token returns the token registered at addr.
func (c *Chain) Token(addr common.Address) (*Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[addr]
	return t, ok
}

// Emit buffers ev for the current call. Events emitted outside a call are
// dropped.
func (c *Chain) Emit(ev domain.Event) {
	if !c.inCall {
		c.logger.Warn("event emitted outside a call", slog.String("type", string(ev.Type)))
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = c.clock.Now()
	}
	c.pending = append(c.pending, ev)
}

// Execute runs fn as a call from `from` to `to`. value is moved from `from`
// to `to` before fn runs. If fn fails, every balance change made during the
// call is undone and its events are discarded. Execute must not be called
// from inside fn.
func (c *Chain) Execute(from, to common.Address, value *uint256.Int, fn func(msg domain.Msg) error) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value == nil {
		value = new(uint256.Int)
	}
	c.inCall = true
	c.journal = c.journal[:0]
	c.pending = nil
	defer func() { c.inCall = false }()

	err := c.native.Transfer(from, to, value)
	if err == nil {
		err = fn(domain.Msg{Sender: from, Value: value.Clone()})
	}
	if err != nil {
		c.revert()
		c.logger.Debug("call reverted",
			slog.String("from", from.Hex()),
			slog.String("to", to.Hex()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.block++
	rcpt := &Receipt{
		Block:     c.block,
		Timestamp: c.clock.Now(),
		From:      from,
		To:        to,
		Value:     value.Clone(),
		Events:    c.pending,
	}
	c.pending = nil
	c.journal = c.journal[:0]
	return rcpt, nil
}

// View runs fn with the sequencer held so reads see a consistent state.
func (c *Chain) View(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Chain) record(undo func()) {
	if c.inCall {
		c.journal = append(c.journal, undo)
	}
}

func (c *Chain) revert() {
	for i := len(c.journal) - 1; i >= 0; i-- {
		c.journal[i]()
	}
	c.journal = c.journal[:0]
	c.pending = nil
}

// accounts is a balance table whose writes are journaled on the owning chain.
type accounts struct {
	chain    *Chain
	balances map[common.Address]*uint256.Int
}

func newAccounts(c *Chain) accounts {
	return accounts{chain: c, balances: make(map[common.Address]*uint256.Int)}
}

// BalanceOf returns a copy of addr's balance.
func (a accounts) BalanceOf(addr common.Address) *uint256.Int {
	if b, ok := a.balances[addr]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// Transfer moves amount from one account to another.
func (a accounts) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}
	fromBal := a.BalanceOf(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("chain: transfer %s from %s: %w", amount.Dec(), from.Hex(), domain.ErrInsufficientBalance)
	}
	toBal, overflow := new(uint256.Int).AddOverflow(a.BalanceOf(to), amount)
	if overflow {
		return fmt.Errorf("chain: transfer to %s: %w", to.Hex(), domain.ErrAmountOverflow)
	}
	a.set(from, new(uint256.Int).Sub(fromBal, amount))
	a.set(to, toBal)
	return nil
}

// Mint credits amount to addr out of thin air. Used for genesis allocations.
func (a accounts) Mint(to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	bal, overflow := new(uint256.Int).AddOverflow(a.BalanceOf(to), amount)
	if overflow {
		return fmt.Errorf("chain: mint to %s: %w", to.Hex(), domain.ErrAmountOverflow)
	}
	a.set(to, bal)
	return nil
}

func (a accounts) set(addr common.Address, v *uint256.Int) {
	prev, had := a.balances[addr]
	a.chain.record(func() {
		if had {
			a.balances[addr] = prev
		} else {
			delete(a.balances, addr)
		}
	})
	a.balances[addr] = v
}

// Ledger holds native value.
type Ledger struct {
	accounts
}

var _ domain.ValueLedger = (*Ledger)(nil)

// Token is a fungible staking token.
type Token struct {
	accounts
	address common.Address
	symbol  string
}

var _ domain.Token = (*Token)(nil)

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.address }

// Symbol returns the token ticker.
func (t *Token) Symbol() string { return t.symbol }
