package service

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/arbitrator"
	"github.com/alanyoungcy/realityarb/internal/chain"
	"github.com/alanyoungcy/realityarb/internal/domain"
	"github.com/alanyoungcy/realityarb/internal/platform/augur"
	"github.com/alanyoungcy/realityarb/internal/realitio"
)

// DeployConfig places the contracts and tunes them.
type DeployConfig struct {
	Addresses  Contracts
	Clock      domain.Clock
	Realitio   realitio.Config
	Arbitrator arbitrator.Config
	Augur      augur.Config
}

// Deployment is a fresh chain with the oracle, the market universe and the
// arbitration bridge deployed on it.
type Deployment struct {
	Chain    *chain.Chain
	Oracle   *realitio.Realitio
	Bridge   *arbitrator.Bridge
	Universe *augur.Universe
	REP      *chain.Token
}

// Deploy builds a new chain and deploys the contracts at cfg.Addresses.
func Deploy(cfg DeployConfig, logger *slog.Logger) *Deployment {
	c := chain.New(cfg.Clock, logger)
	rep := c.NewToken(cfg.Addresses.REP, "REP")
	oracle := realitio.New(cfg.Addresses.Oracle, cfg.Realitio, cfg.Clock, c.Native(), c, logger)
	universe := augur.NewUniverse(cfg.Addresses.Universe, cfg.Augur, cfg.Clock, c.Native(), rep, c, logger)
	bridge := arbitrator.New(cfg.Addresses.Arbitrator, cfg.Arbitrator, arbitrator.Deps{
		Oracle:      oracle,
		Universe:    universe,
		MarketToken: cfg.Addresses.MarketToken,
		Clock:       cfg.Clock,
		Ledger:      c.Native(),
		Emitter:     c,
		Logger:      logger,
	})
	return &Deployment{Chain: c, Oracle: oracle, Bridge: bridge, Universe: universe, REP: rep}
}

// DeployAddresses derives the contract addresses from the operator's
// deployment nonces.
func DeployAddresses(deployer interface{ DeployAddress(uint64) common.Address }) Contracts {
	return Contracts{
		Oracle:      deployer.DeployAddress(0),
		REP:         deployer.DeployAddress(1),
		Universe:    deployer.DeployAddress(2),
		Arbitrator:  deployer.DeployAddress(3),
		MarketToken: deployer.DeployAddress(4),
	}
}
