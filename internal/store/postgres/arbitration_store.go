package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// ArbitrationStore implements domain.ArbitrationStore using PostgreSQL.
type ArbitrationStore struct {
	pool *pgxpool.Pool
}

// NewArbitrationStore creates a new ArbitrationStore backed by the given
// connection pool.
func NewArbitrationStore(pool *pgxpool.Pool) *ArbitrationStore {
	return &ArbitrationStore{pool: pool}
}

// Upsert inserts or replaces the request snapshot for a question.
func (s *ArbitrationStore) Upsert(ctx context.Context, r domain.ArbitrationRequest) error {
	const query = `
		INSERT INTO arbitration_requests (
			question_id, requester, max_previous_bond, fee_paid, market,
			market_owner, state, requested_at, reported_answer, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (question_id) DO UPDATE SET
			requester         = EXCLUDED.requester,
			max_previous_bond = EXCLUDED.max_previous_bond,
			fee_paid          = EXCLUDED.fee_paid,
			market            = EXCLUDED.market,
			market_owner      = EXCLUDED.market_owner,
			state             = EXCLUDED.state,
			requested_at      = EXCLUDED.requested_at,
			reported_answer   = EXCLUDED.reported_answer,
			updated_at        = NOW()`

	_, err := s.pool.Exec(ctx, query,
		r.QuestionID.Hex(), r.Requester.Hex(), amountText(r.MaxPreviousBond), amountText(r.FeePaid),
		r.Market.Hex(), r.MarketOwner.Hex(), string(r.State), int64(r.RequestedAt), r.ReportedAnswer.Hex(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert arbitration request %s: %w", r.QuestionID.Hex(), err)
	}
	return nil
}

// GetByQuestion returns the stored request for a question, or
// domain.ErrNotFound.
func (s *ArbitrationStore) GetByQuestion(ctx context.Context, questionID common.Hash) (domain.ArbitrationRequest, error) {
	const query = `
		SELECT question_id, requester, max_previous_bond, fee_paid, market,
		       market_owner, state, requested_at, reported_answer
		FROM arbitration_requests
		WHERE question_id = $1`

	var (
		qid, requester, maxPrev, fee, market, owner, state, answer string
		requestedAt                                                int64
	)
	err := s.pool.QueryRow(ctx, query, questionID.Hex()).Scan(
		&qid, &requester, &maxPrev, &fee, &market, &owner, &state, &requestedAt, &answer,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArbitrationRequest{}, fmt.Errorf("postgres: arbitration request %s: %w", questionID.Hex(), domain.ErrNotFound)
		}
		return domain.ArbitrationRequest{}, fmt.Errorf("postgres: get arbitration request %s: %w", questionID.Hex(), err)
	}

	var sc scanner
	r := domain.ArbitrationRequest{
		QuestionID:      sc.hash(qid),
		Requester:       sc.address(requester),
		MaxPreviousBond: sc.amount(maxPrev),
		FeePaid:         sc.amount(fee),
		Market:          sc.address(market),
		MarketOwner:     sc.address(owner),
		State:           domain.ArbitrationState(state),
		RequestedAt:     uint32(requestedAt),
		ReportedAnswer:  sc.hash(answer),
	}
	if sc.err != nil {
		return domain.ArbitrationRequest{}, sc.err
	}
	return r, nil
}

// Compile-time interface check.
var _ domain.ArbitrationStore = (*ArbitrationStore)(nil)
