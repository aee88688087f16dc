package augur

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// Market is a Yes/No market. Outcome 0 is No and outcome 1 is Yes; an
// invalid resolution is reported as a separate flag.
type Market struct {
	universe *Universe

	address            common.Address
	owner              common.Address
	description        string
	extraInfo          string
	topic              common.Hash
	endTime            uint32
	feePerEthInWei     *uint256.Int
	denominationToken  common.Address
	designatedReporter common.Address
	numTicks           uint64
	validityBond       *uint256.Int
	noShowBond         *uint256.Int

	reported  bool
	reporter  common.Address
	payout    []*uint256.Int
	invalid   bool
	feeWindow *FeeWindow
	finalized bool
}

var _ domain.Market = (*Market)(nil)

func (m *Market) Address() common.Address               { return m.address }
func (m *Market) Owner() common.Address                 { return m.owner }
func (m *Market) Description() string                   { return m.description }
func (m *Market) GetNumTicks() *uint256.Int             { return uint256.NewInt(m.numTicks) }
func (m *Market) GetEndTime() uint32                    { return m.endTime }
func (m *Market) GetDesignatedReporter() common.Address { return m.designatedReporter }
func (m *Market) IsFinalized() bool                     { return m.finalized }
func (m *Market) IsInvalid() bool                       { return m.finalized && m.invalid }

// GetFeeWindow returns nil until the market has been reported on.
func (m *Market) GetFeeWindow() domain.FeeWindow {
	if m.feeWindow == nil {
		return nil
	}
	return m.feeWindow
}

// GetWinningPayoutNumerator returns the finalized payout of a reported
// outcome index (0 = No, 1 = Yes). It is zero before finalization.
func (m *Market) GetWinningPayoutNumerator(outcome int) *uint256.Int {
	if !m.finalized || outcome < 0 || outcome >= len(m.payout) {
		return new(uint256.Int)
	}
	return m.payout[outcome].Clone()
}

// DoInitialReport records the designated reporter's answer after the market
// has ended. The reporter stakes the designated report stake in REP and the
// market creator gets the no-show bond back.
func (m *Market) DoInitialReport(reporter common.Address, payoutNumerators []*uint256.Int, invalid bool) error {
	u := m.universe
	now := u.clock.Now()
	if m.reported {
		return fmt.Errorf("augur: report %s: %w", m.address.Hex(), domain.ErrAlreadyInitialReported)
	}
	if now < m.endTime {
		return fmt.Errorf("augur: report %s before %d: %w", m.address.Hex(), m.endTime, domain.ErrMarketNotEnded)
	}
	if reporter != m.designatedReporter {
		return fmt.Errorf("augur: report %s: %w", m.address.Hex(), domain.ErrNotDesignated)
	}
	if err := m.checkPayout(payoutNumerators, invalid); err != nil {
		return err
	}
	if err := u.rep.Transfer(reporter, u.address, u.cfg.DesignatedReportStake); err != nil {
		return fmt.Errorf("augur: report %s: stake: %w", m.address.Hex(), err)
	}
	if err := u.rep.Transfer(u.address, m.owner, m.noShowBond); err != nil {
		return fmt.Errorf("augur: report %s: refund no-show bond: %w", m.address.Hex(), err)
	}

	m.reported = true
	m.reporter = reporter
	m.invalid = invalid
	m.payout = make([]*uint256.Int, len(payoutNumerators))
	for i, p := range payoutNumerators {
		m.payout[i] = p.Clone()
	}
	m.feeWindow = u.feeWindowFor(now)

	u.emit(domain.EventInitialReport, domain.MarketReportData{
		Market:           m.address,
		Reporter:         reporter,
		PayoutNumerators: clonePayout(m.payout),
		Invalid:          invalid,
	})
	return nil
}

// Finalize makes the reported outcome final once its fee window has ended.
// The designated reporter gets its stake back; the creator gets the validity
// bond back unless the market resolved invalid. Finalizing twice is a no-op.
func (m *Market) Finalize() error {
	if m.finalized {
		return nil
	}
	u := m.universe
	if m.feeWindow == nil {
		return fmt.Errorf("augur: finalize %s: no report: %w", m.address.Hex(), domain.ErrMarketNotFinalized)
	}
	if u.clock.Now() <= m.feeWindow.end {
		return fmt.Errorf("augur: finalize %s: window ends %d: %w", m.address.Hex(), m.feeWindow.end, domain.ErrFeeWindowOpen)
	}
	if err := u.rep.Transfer(u.address, m.reporter, u.cfg.DesignatedReportStake); err != nil {
		return fmt.Errorf("augur: finalize %s: return stake: %w", m.address.Hex(), err)
	}
	if !m.invalid {
		if err := u.ledger.Transfer(u.address, m.owner, m.validityBond); err != nil {
			return fmt.Errorf("augur: finalize %s: return validity bond: %w", m.address.Hex(), err)
		}
	}

	m.finalized = true
	u.emit(domain.EventMarketFinalized, domain.MarketReportData{
		Market:           m.address,
		PayoutNumerators: clonePayout(m.payout),
		Invalid:          m.invalid,
	})
	u.logger.Info("market finalized",
		slog.String("market", m.address.Hex()),
		slog.Bool("invalid", m.invalid),
	)
	return nil
}

// checkPayout accepts a two-outcome vector summing to numTicks. An invalid
// report must split evenly; an all-zero vector is accepted as shorthand.
func (m *Market) checkPayout(payout []*uint256.Int, invalid bool) error {
	if len(payout) != 2 || payout[0] == nil || payout[1] == nil {
		return fmt.Errorf("augur: payout needs 2 numerators: %w", domain.ErrInvalidPayout)
	}
	sum, overflow := new(uint256.Int).AddOverflow(payout[0], payout[1])
	if overflow {
		return fmt.Errorf("augur: payout: %w", domain.ErrInvalidPayout)
	}
	if invalid {
		if !payout[0].Eq(payout[1]) || !(sum.IsZero() || sum.Eq(m.GetNumTicks())) {
			return fmt.Errorf("augur: invalid report must split evenly: %w", domain.ErrInvalidPayout)
		}
		return nil
	}
	if !sum.Eq(m.GetNumTicks()) {
		return fmt.Errorf("augur: payout sums to %s, want %d: %w", sum.Dec(), m.numTicks, domain.ErrInvalidPayout)
	}
	return nil
}

func clonePayout(p []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(p))
	for i, v := range p {
		out[i] = v.Clone()
	}
	return out
}

// FeeWindow is a dispute period shared by every market reported in it.
type FeeWindow struct {
	address common.Address
	start   uint32
	end     uint32
}

var _ domain.FeeWindow = (*FeeWindow)(nil)

func (w *FeeWindow) Address() common.Address { return w.address }
func (w *FeeWindow) GetStartTime() uint32    { return w.start }
func (w *FeeWindow) GetEndTime() uint32      { return w.end }
