// Package augur is an in-process prediction-market engine covering what the
// arbitration bridge needs: bond queries, Yes/No market creation, designated
// reporting, fee windows and finalization. Disputes and forking are not
// modelled.
package augur

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

const (
	defaultNumTicks      = 10000
	defaultDisputeWindow = 7 * 24 * 60 * 60
)

// Config holds the universe's bond sizes and timing.
type Config struct {
	// ValidityBond is paid in native value on market creation.
	ValidityBond *uint256.Int
	// NoShowBond is paid in REP on market creation and returned to the
	// market creator when the designated reporter reports.
	NoShowBond *uint256.Int
	// DesignatedReportStake is the REP a designated reporter stakes.
	DesignatedReportStake *uint256.Int
	NumTicks              uint64
	// DisputeWindow is the fee window length in seconds.
	DisputeWindow uint32
}

func (c Config) withDefaults() Config {
	if c.ValidityBond == nil {
		c.ValidityBond = new(uint256.Int)
	}
	if c.NoShowBond == nil {
		c.NoShowBond = new(uint256.Int)
	}
	if c.DesignatedReportStake == nil {
		c.DesignatedReportStake = new(uint256.Int)
	}
	if c.NumTicks == 0 {
		c.NumTicks = defaultNumTicks
	}
	if c.DisputeWindow == 0 {
		c.DisputeWindow = defaultDisputeWindow
	}
	return c
}

// Universe creates markets and holds their bonds.
type Universe struct {
	address common.Address
	cfg     Config
	clock   domain.Clock
	ledger  domain.ValueLedger
	rep     domain.Token
	emitter domain.EventEmitter
	logger  *slog.Logger

	nonce      uint64
	markets    map[common.Address]*Market
	feeWindows map[uint32]*FeeWindow
}

var _ domain.Universe = (*Universe)(nil)

// NewUniverse creates a universe deployed at address staking rep.
func NewUniverse(address common.Address, cfg Config, clock domain.Clock, ledger domain.ValueLedger, rep domain.Token, emitter domain.EventEmitter, logger *slog.Logger) *Universe {
	return &Universe{
		address:    address,
		cfg:        cfg.withDefaults(),
		clock:      clock,
		ledger:     ledger,
		rep:        rep,
		emitter:    emitter,
		logger:     logger.With(slog.String("component", "augur_universe")),
		markets:    make(map[common.Address]*Market),
		feeWindows: make(map[uint32]*FeeWindow),
	}
}

func (u *Universe) Address() common.Address { return u.address }

func (u *Universe) GetOrCacheValidityBond() *uint256.Int { return u.cfg.ValidityBond.Clone() }

func (u *Universe) GetOrCacheDesignatedReportNoShowBond() *uint256.Int {
	return u.cfg.NoShowBond.Clone()
}

func (u *Universe) GetOrCacheDesignatedReportStake() *uint256.Int {
	return u.cfg.DesignatedReportStake.Clone()
}

func (u *Universe) GetReputationToken() domain.Token { return u.rep }

// CreateYesNoMarket creates a binary market owned by msg.Sender. The
// attached value must cover the validity bond; the no-show bond is taken from
// the sender in REP.
func (u *Universe) CreateYesNoMarket(msg domain.Msg, endTime uint32, feePerEthInWei *uint256.Int, denominationToken, designatedReporter common.Address, topic common.Hash, description, extraInfo string) (domain.Market, error) {
	if msg.ValueOrZero().Lt(u.cfg.ValidityBond) {
		return nil, fmt.Errorf("augur: create market: validity bond %s < %s: %w",
			msg.ValueOrZero().Dec(), u.cfg.ValidityBond.Dec(), domain.ErrInsufficientBond)
	}
	if endTime <= u.clock.Now() {
		return nil, fmt.Errorf("augur: create market: end time %d in the past: %w", endTime, domain.ErrInvalidTimeout)
	}
	if designatedReporter == (common.Address{}) {
		return nil, fmt.Errorf("augur: create market: %w", domain.ErrNotDesignated)
	}
	if err := u.rep.Transfer(msg.Sender, u.address, u.cfg.NoShowBond); err != nil {
		return nil, fmt.Errorf("augur: create market: no-show bond: %w", err)
	}

	m := &Market{
		universe:           u,
		address:            u.nextAddress(),
		owner:              msg.Sender,
		description:        description,
		extraInfo:          extraInfo,
		topic:              topic,
		endTime:            endTime,
		feePerEthInWei:     cloneOrZero(feePerEthInWei),
		denominationToken:  denominationToken,
		designatedReporter: designatedReporter,
		numTicks:           u.cfg.NumTicks,
		validityBond:       msg.ValueOrZero().Clone(),
		noShowBond:         u.cfg.NoShowBond.Clone(),
	}
	u.markets[m.address] = m
	u.logger.Debug("market created",
		slog.String("market", m.address.Hex()),
		slog.String("owner", m.owner.Hex()),
		slog.Uint64("end_time", uint64(endTime)),
	)
	return m, nil
}

// Market looks up a market by address.
func (u *Universe) Market(addr common.Address) (domain.Market, error) {
	m, ok := u.markets[addr]
	if !ok {
		return nil, fmt.Errorf("augur: market %s: %w", addr.Hex(), domain.ErrNotFound)
	}
	return m, nil
}

// feeWindowFor returns the window starting after ts, creating it if needed.
// Windows are aligned to multiples of the dispute window length.
func (u *Universe) feeWindowFor(ts uint32) *FeeWindow {
	d := u.cfg.DisputeWindow
	start := (ts/d + 1) * d
	if w, ok := u.feeWindows[start]; ok {
		return w
	}
	w := &FeeWindow{address: u.nextAddress(), start: start, end: start + d}
	u.feeWindows[start] = w
	return w
}

func (u *Universe) nextAddress() common.Address {
	addr := ethcrypto.CreateAddress(u.address, u.nonce)
	u.nonce++
	return addr
}

func (u *Universe) emit(typ domain.EventType, data any) {
	u.emitter.Emit(domain.Event{
		Type:      typ,
		Emitter:   u.address,
		Timestamp: u.clock.Now(),
		Data:      data,
	})
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
