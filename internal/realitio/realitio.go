// Package realitio is the question/answer oracle: a registry of templated
// questions, a bonding ladder of answers per question, arbitration hooks and
// the settlement of bonds once a question is final.
//
// A Realitio is driven through the chain sequencer. Mutating methods take the
// call's domain.Msg; any attached value has already been moved to Address().
package realitio

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

const (
	// maxTimeout is the longest finalization window a question may ask for.
	maxTimeout = 365 * 24 * 60 * 60

	defaultBondMultiplier         = 2
	defaultCommitmentTimeoutRatio = 8
)

// builtinTemplates are registered at construction, IDs 0 to 4.
var builtinTemplates = []string{
	`{"title": "%s", "type": "bool", "category": "%s"}`,
	`{"title": "%s", "type": "uint", "decimals": 18, "category": "%s"}`,
	`{"title": "%s", "type": "single-select", "outcomes": [%s], "category": "%s"}`,
	`{"title": "%s", "type": "multiple-select", "outcomes": [%s], "category": "%s"}`,
	`{"title": "%s", "type": "datetime", "category": "%s"}`,
}

// Config tunes the bonding ladder.
type Config struct {
	// BondMultiplier is the factor every new bond must reach over the
	// current one.
	BondMultiplier uint64
	// CommitmentTimeoutRatio divides the question timeout to get the reveal
	// window of a commitment.
	CommitmentTimeoutRatio uint32
}

func (c Config) withDefaults() Config {
	if c.BondMultiplier < 1 {
		c.BondMultiplier = defaultBondMultiplier
	}
	if c.CommitmentTimeoutRatio == 0 {
		c.CommitmentTimeoutRatio = defaultCommitmentTimeoutRatio
	}
	return c
}

// Realitio holds every question, commitment and unclaimed balance.
type Realitio struct {
	address common.Address
	cfg     Config
	clock   domain.Clock
	ledger  domain.ValueLedger
	emitter domain.EventEmitter
	logger  *slog.Logger

	templates   []domain.Template
	questions   map[common.Hash]*domain.Question
	commitments map[common.Hash]*domain.Commitment
	balances    map[common.Address]*uint256.Int
}

// New creates an oracle deployed at address.
func New(address common.Address, cfg Config, clock domain.Clock, ledger domain.ValueLedger, emitter domain.EventEmitter, logger *slog.Logger) *Realitio {
	r := &Realitio{
		address:     address,
		cfg:         cfg.withDefaults(),
		clock:       clock,
		ledger:      ledger,
		emitter:     emitter,
		logger:      logger.With(slog.String("component", "realitio")),
		questions:   make(map[common.Hash]*domain.Question),
		commitments: make(map[common.Hash]*domain.Commitment),
		balances:    make(map[common.Address]*uint256.Int),
	}
	for _, content := range builtinTemplates {
		r.templates = append(r.templates, domain.Template{
			ID:      uint64(len(r.templates)),
			Content: content,
		})
	}
	return r
}

// Address returns the contract address holding escrowed bonds and bounties.
func (r *Realitio) Address() common.Address { return r.address }

// CreateTemplate registers a new question template and returns its ID.
func (r *Realitio) CreateTemplate(msg domain.Msg, content string) (uint64, error) {
	id := uint64(len(r.templates))
	tpl := domain.Template{
		ID:        id,
		Content:   content,
		CreatedBy: msg.Sender,
		CreatedAt: r.clock.Now(),
	}
	r.templates = append(r.templates, tpl)
	r.emit(domain.EventNewTemplate, common.Hash{}, domain.NewTemplateData{
		TemplateID: id,
		User:       msg.Sender,
		Content:    content,
	})
	return id, nil
}

// Template returns the template with the given ID.
func (r *Realitio) Template(id uint64) (domain.Template, error) {
	if id >= uint64(len(r.templates)) {
		return domain.Template{}, fmt.Errorf("realitio: template %d: %w", id, domain.ErrUnknownTemplate)
	}
	return r.templates[id], nil
}

// BalanceOf returns addr's claimed but not yet withdrawn funds.
func (r *Realitio) BalanceOf(addr common.Address) *uint256.Int {
	if b, ok := r.balances[addr]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (r *Realitio) emit(typ domain.EventType, questionID common.Hash, data any) {
	r.emitter.Emit(domain.Event{
		Type:       typ,
		Emitter:    r.address,
		QuestionID: questionID,
		Timestamp:  r.clock.Now(),
		Data:       data,
	})
}

func (r *Realitio) question(id common.Hash) (*domain.Question, error) {
	q, ok := r.questions[id]
	if !ok {
		return nil, fmt.Errorf("realitio: question %s: %w", id.Hex(), domain.ErrNotFound)
	}
	return q, nil
}
