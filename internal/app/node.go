package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/realityarb/internal/arbitrator"
	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/platform/augur"
	"github.com/alanyoungcy/realityarb/internal/realitio"
	"github.com/alanyoungcy/realityarb/internal/server/ws"
	"github.com/alanyoungcy/realityarb/internal/service"
)

// queueSize is the per-subscriber backlog of receipts.
const queueSize = 256

// node is a running oracle: the deployed contracts, the service in front of
// them and the event fan-out.
type node struct {
	svc        *service.OracleService
	index      *service.HistoryIndexer
	dispatcher *service.EventDispatcher
	hub        *ws.Hub
}

// buildNode deploys the contracts on a fresh chain, wires every configured
// event sink and applies the genesis allocations.
func (a *App) buildNode(deps *Dependencies) (*node, error) {
	cfg := a.cfg

	var (
		clock  domain.Clock
		manual *chain.ManualClock
	)
	switch cfg.Genesis.Clock {
	case "system":
		clock = chain.SystemClock{}
	default:
		start := uint32(cfg.Genesis.StartTime)
		if start == 0 {
			start = uint32(time.Now().Unix())
		}
		manual = chain.NewManualClock(start)
		clock = manual
	}

	dep := service.Deploy(service.DeployConfig{
		Addresses: service.DeployAddresses(deps.Signer),
		Clock:     clock,
		Realitio: realitio.Config{
			BondMultiplier:         cfg.Realitio.BondMultiplier,
			CommitmentTimeoutRatio: cfg.Realitio.CommitmentTimeoutRatio,
		},
		Arbitrator: arbitrator.Config{
			TemplateID: cfg.Arbitrator.TemplateID,
			DisputeFee: cfg.Arbitrator.DisputeFee.Value(),
		},
		Augur: augur.Config{
			ValidityBond:          cfg.Augur.ValidityBond.Value(),
			NoShowBond:            cfg.Augur.NoShowBond.Value(),
			DesignatedReportStake: cfg.Augur.DesignatedReportStake.Value(),
			NumTicks:              cfg.Augur.NumTicks,
			DisputeWindow:         uint32(cfg.Augur.DisputeWindow.Seconds()),
		},
	}, a.logger)

	n := &node{
		index:      service.NewHistoryIndexer(deps.AnswerStore, a.logger),
		dispatcher: service.NewEventDispatcher(a.logger),
		hub: ws.NewHub(a.logger, ws.Config{
			Mode:      cfg.Mode,
			StartedAt: time.Now().UTC(),
		}),
	}
	n.svc = service.NewOracleService(service.OracleDeps{
		Deployment: dep,
		Index:      n.index,
		Dispatcher: n.dispatcher,
		Clock:      manual,
		Locks:      deps.LockManager,
		LockTTL:    cfg.Redis.LockTTL.Duration,
		Logger:     a.logger,
	})

	// The indexer runs inline so claims see the answers of the call before.
	n.dispatcher.Inline(n.index)
	n.dispatcher.Subscribe(n.hub, queueSize)

	pub := service.PublisherDeps{
		Bus:    deps.SignalBus,
		Audit:  deps.AuditStore,
		Signer: deps.Signer,
	}
	if deps.Notifier != nil {
		pub.Notifier = deps.Notifier
	}
	if pub.Bus != nil || pub.Audit != nil || pub.Notifier != nil {
		n.dispatcher.Subscribe(service.NewEventPublisher(pub, a.logger), queueSize)
	}
	if deps.QuestionStore != nil || deps.ArbitrationStore != nil {
		n.dispatcher.Subscribe(service.NewSnapshotRecorder(n.svc, deps.QuestionStore, deps.ArbitrationStore, a.logger), queueSize)
	}
	if deps.HistoryArchive != nil {
		n.dispatcher.Subscribe(service.NewHistoryArchiver(deps.HistoryArchive, n.svc, n.index, a.logger), queueSize)
	}

	if err := a.genesis(n.svc, deps.Signer.Address()); err != nil {
		return nil, err
	}

	contracts := n.svc.Contracts()
	a.logger.Info("contracts deployed",
		slog.String("oracle", contracts.Oracle.Hex()),
		slog.String("arbitrator", contracts.Arbitrator.Hex()),
		slog.String("universe", contracts.Universe.Hex()),
		slog.String("rep", contracts.REP.Hex()),
		slog.String("clock", cfg.Genesis.Clock),
		slog.Uint64("now", uint64(n.svc.Now())),
	)
	return n, nil
}

// genesis funds the operator, the bridge's no-show bond reserve and the
// configured accounts.
func (a *App) genesis(svc *service.OracleService, operator common.Address) error {
	g := a.cfg.Genesis
	if err := svc.Mint(operator, g.OperatorNative.Value(), g.OperatorREP.Value()); err != nil {
		return fmt.Errorf("app: genesis operator: %w", err)
	}
	if err := svc.Mint(svc.Contracts().Arbitrator, nil, g.BridgeREP.Value()); err != nil {
		return fmt.Errorf("app: genesis bridge: %w", err)
	}
	for _, acct := range g.Accounts {
		if err := svc.Mint(common.HexToAddress(acct.Address), acct.Native.Value(), acct.REP.Value()); err != nil {
			return fmt.Errorf("app: genesis account: %w", err)
		}
	}
	return nil
}

// start runs the dispatcher and hub on g. On shutdown the dispatcher
// delivers whatever is still queued before returning.
func (n *node) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return n.hub.Run(ctx) })
	g.Go(func() error { return n.dispatcher.Run(ctx) })
}
