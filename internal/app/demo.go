package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/realityarb/internal/crypto"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/realitio"
	"github.com/alanyoungcy/realityarb/internal/service"
)

// Demo amounts in wei.
var (
	demoFunds  = uint256.NewInt(1_000_000_000_000_000_000)
	demoBounty = uint256.NewInt(1_000_000_000_000_000)
	demoBond   = uint256.NewInt(10_000_000_000_000_000)
)

// demoActors are the accounts playing the arbitration round.
type demoActors struct {
	asker, alice, bob, disputer, reporter common.Address
}

// DemoMode plays one full arbitration round against a fresh node: a
// question is answered twice, escalated to the bridge, settled through a
// simulated market and claimed. It returns when the round is complete.
func (a *App) DemoMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting demo mode")

	if a.cfg.Genesis.Clock == "system" {
		return errors.New("demo mode: genesis clock must be manual")
	}
	n, err := a.buildNode(deps)
	if err != nil {
		return fmt.Errorf("demo mode: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	n.start(gctx, g)

	roundErr := a.playRound(ctx, n.svc, deps.Signer.Address())
	stop()
	if err := g.Wait(); err != nil {
		return fmt.Errorf("demo mode: %w", err)
	}
	if roundErr != nil {
		return fmt.Errorf("demo mode: %w", roundErr)
	}
	return nil
}

func newDemoActors() (demoActors, error) {
	var addrs [5]common.Address
	for i := range addrs {
		s, err := crypto.GenerateSigner()
		if err != nil {
			return demoActors{}, err
		}
		addrs[i] = s.Address()
	}
	return demoActors{
		asker:    addrs[0],
		alice:    addrs[1],
		bob:      addrs[2],
		disputer: addrs[3],
		reporter: addrs[4],
	}, nil
}

// playRound runs the scripted round. The operator owns the market.
func (a *App) playRound(ctx context.Context, svc *service.OracleService, operator common.Address) error {
	logger := a.logger.With(slog.String("component", "demo"))
	cfg := a.cfg

	actors, err := newDemoActors()
	if err != nil {
		return err
	}

	funds := new(uint256.Int).Add(demoFunds, cfg.Arbitrator.DisputeFee.Value())
	funds.Add(funds, cfg.Augur.ValidityBond.Value())
	for _, addr := range []common.Address{actors.asker, actors.alice, actors.bob, actors.disputer, operator} {
		if err := svc.Mint(addr, funds, nil); err != nil {
			return err
		}
	}
	if err := svc.Mint(actors.reporter, nil, cfg.Augur.DesignatedReportStake.Value()); err != nil {
		return err
	}
	if err := svc.Mint(svc.Contracts().Arbitrator, nil, cfg.Augur.NoShowBond.Value()); err != nil {
		return err
	}

	id, _, err := svc.AskQuestion(ctx, actors.asker, demoBounty, realitio.AskQuestionParams{
		TemplateID: 0,
		Question:   "Will the demo round settle through the arbitration bridge?",
		Arbitrator: svc.Contracts().Arbitrator,
		Timeout:    3600,
		Nonce:      uint256.NewInt(uint64(svc.Now())),
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	logger = logger.With(slog.String("question_id", id.Hex()))
	logger.InfoContext(ctx, "demo: question asked", slog.String("asker", actors.asker.Hex()))

	if _, err := svc.SubmitAnswer(ctx, actors.alice, demoBond, id, domain.AnswerYes, nil, common.Address{}); err != nil {
		return fmt.Errorf("answer yes: %w", err)
	}
	second := new(uint256.Int).Mul(demoBond, uint256.NewInt(2))
	if _, err := svc.SubmitAnswer(ctx, actors.bob, second, id, domain.AnswerNo, demoBond, common.Address{}); err != nil {
		return fmt.Errorf("answer no: %w", err)
	}
	logger.InfoContext(ctx, "demo: answers submitted",
		slog.String("yes_by", actors.alice.Hex()),
		slog.String("no_by", actors.bob.Hex()),
	)

	disputeFee := svc.DisputeFee(id)
	if _, err := svc.RequestArbitration(ctx, actors.disputer, disputeFee, id, second); err != nil {
		return fmt.Errorf("request arbitration: %w", err)
	}
	logger.InfoContext(ctx, "demo: arbitration requested", slog.String("fee", disputeFee.Dec()))

	params, err := svc.MarketParams(ctx, id, actors.reporter)
	if err != nil {
		return fmt.Errorf("market params: %w", err)
	}
	validity, _ := svc.MarketBonds()
	market, _, err := svc.CreateMarket(ctx, operator, validity, params)
	if err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	logger.InfoContext(ctx, "demo: market created", slog.String("market", market.Hex()))

	view, err := svc.Market(market)
	if err != nil {
		return err
	}
	if _, err := svc.SetTime(ctx, view.EndTime); err != nil {
		return err
	}
	payout, invalid := service.PayoutFor(domain.AnswerYes, view.NumTicks)
	if _, err := svc.ReportMarket(ctx, actors.reporter, market, payout, invalid); err != nil {
		return fmt.Errorf("report market: %w", err)
	}

	if view, err = svc.Market(market); err != nil {
		return err
	}
	if _, err := svc.SetTime(ctx, view.FeeWindowEnd+1); err != nil {
		return err
	}
	if _, err := svc.FinalizeMarket(ctx, operator, market); err != nil {
		return fmt.Errorf("finalize market: %w", err)
	}
	logger.InfoContext(ctx, "demo: market finalized")

	if _, err := svc.ReportAnswer(ctx, actors.disputer, id, nil); err != nil {
		return fmt.Errorf("report answer: %w", err)
	}
	final, err := svc.FinalAnswer(id)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "demo: answer reported", slog.String("final_answer", final.Hex()))

	// The disputer took the last wrong answerer's place, so its claim
	// settles the whole history.
	paid, _, err := svc.ClaimMultipleAndWithdraw(ctx, actors.disputer, []common.Hash{id})
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	logger.InfoContext(ctx, "demo: claimed and withdrawn",
		slog.String("account", actors.disputer.Hex()),
		slog.String("amount", paid.Dec()),
	)
	if paid, _, err = svc.Withdraw(ctx, actors.alice); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	logger.InfoContext(ctx, "demo: withdrawn",
		slog.String("account", actors.alice.Hex()),
		slog.String("amount", paid.Dec()),
	)

	for name, addr := range map[string]common.Address{
		"asker":    actors.asker,
		"alice":    actors.alice,
		"bob":      actors.bob,
		"disputer": actors.disputer,
		"reporter": actors.reporter,
		"operator": operator,
	} {
		b := svc.Balances(addr)
		logger.InfoContext(ctx, "demo: balance",
			slog.String("actor", name),
			slog.String("address", addr.Hex()),
			slog.String("native", b.Native.Dec()),
			slog.String("rep", b.REP.Dec()),
		)
	}
	return nil
}
