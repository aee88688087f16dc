package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// Simulator operations drive the in-process market engine and clock. On a
// real deployment these happen outside the service; here they let a market
// be resolved end to end.

// PayoutFor returns the payout vector a designated reporter files to make a
// market resolve to answer. Any answer other than Yes or No reports invalid.
func PayoutFor(answer common.Hash, numTicks *uint256.Int) (payout []*uint256.Int, invalid bool) {
	switch answer {
	case domain.AnswerYes:
		return []*uint256.Int{new(uint256.Int), numTicks.Clone()}, false
	case domain.AnswerNo:
		return []*uint256.Int{numTicks.Clone(), new(uint256.Int)}, false
	default:
		half := new(uint256.Int).Rsh(numTicks, 1)
		return []*uint256.Int{half, half.Clone()}, true
	}
}

// ReportMarket files the designated reporter's initial report.
func (s *OracleService) ReportMarket(ctx context.Context, reporter, market common.Address, payout []*uint256.Int, invalid bool) (*chain.Receipt, error) {
	return s.execute(ctx, "report_market", reporter, s.universe.Address(), nil, nil, func(msg domain.Msg) error {
		m, err := s.universe.Market(market)
		if err != nil {
			return err
		}
		return m.DoInitialReport(msg.Sender, payout, invalid)
	})
}

// FinalizeMarket finalizes a reported market once its fee window is over.
func (s *OracleService) FinalizeMarket(ctx context.Context, from, market common.Address) (*chain.Receipt, error) {
	return s.execute(ctx, "finalize_market", from, s.universe.Address(), nil, nil, func(domain.Msg) error {
		m, err := s.universe.Market(market)
		if err != nil {
			return err
		}
		return m.Finalize()
	})
}

// SetTime moves simulated time to ts.
func (s *OracleService) SetTime(ctx context.Context, ts uint32) (uint32, error) {
	if s.clock == nil {
		return 0, fmt.Errorf("service: set time: %w", domain.ErrClockFixed)
	}
	if !s.clock.Set(ts) {
		return s.clock.Now(), fmt.Errorf("service: set time %d: %w", ts, domain.ErrTimeBackwards)
	}
	s.logger.InfoContext(ctx, "time set", slog.Uint64("now", uint64(ts)))
	return ts, nil
}

// AdvanceTime moves simulated time forward by d seconds.
func (s *OracleService) AdvanceTime(ctx context.Context, d uint32) (uint32, error) {
	if s.clock == nil {
		return 0, fmt.Errorf("service: advance time: %w", domain.ErrClockFixed)
	}
	now, ok := s.clock.Advance(d)
	if !ok {
		return now, fmt.Errorf("service: advance time by %d: %w", d, domain.ErrTimeBackwards)
	}
	s.logger.InfoContext(ctx, "time advanced",
		slog.Uint64("by", uint64(d)),
		slog.Uint64("now", uint64(now)),
	)
	return now, nil
}

// Mint credits native value and REP to addr. It is used for genesis
// allocations and by the demo.
func (s *OracleService) Mint(addr common.Address, native, rep *uint256.Int) error {
	var err error
	s.chain.View(func() {
		if err = s.chain.Native().Mint(addr, native); err != nil {
			return
		}
		err = s.rep.Mint(addr, rep)
	})
	if err != nil {
		return fmt.Errorf("service: mint %s: %w", addr.Hex(), err)
	}
	return nil
}
