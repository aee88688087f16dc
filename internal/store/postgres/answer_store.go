package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// AnswerStore implements domain.AnswerStore using PostgreSQL. Rows are
// scoped to one run of the node: a restarted node deploys a new chain and
// must not see the answer logs of the previous one.
type AnswerStore struct {
	pool  *pgxpool.Pool
	runID string
}

// NewAnswerStore creates a new AnswerStore backed by the given connection
// pool, reading and writing only the rows of runID.
func NewAnswerStore(pool *pgxpool.Pool, runID string) *AnswerStore {
	return &AnswerStore{pool: pool, runID: runID}
}

// Append records one history entry. Replaying an entry already stored at the
// same (run, question, seq) is a no-op.
func (s *AnswerStore) Append(ctx context.Context, e domain.AnswerEntry) error {
	const query = `
		INSERT INTO answers (
			run_id, question_id, seq, prev_history_hash, history_hash,
			answerer, bond, answer, is_commitment, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, question_id, seq) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, s.runID,
		e.QuestionID.Hex(), e.Seq, e.PrevHistoryHash.Hex(), e.HistoryHash.Hex(),
		e.Answerer.Hex(), amountText(e.Bond), e.Answer.Hex(), e.IsCommitment, int64(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("postgres: append answer %s/%d: %w", e.QuestionID.Hex(), e.Seq, err)
	}
	return nil
}

// ListByQuestion returns a question's entries oldest first.
func (s *AnswerStore) ListByQuestion(ctx context.Context, questionID common.Hash) ([]domain.AnswerEntry, error) {
	const query = `
		SELECT question_id, seq, prev_history_hash, history_hash,
		       answerer, bond, answer, is_commitment, ts
		FROM answers
		WHERE run_id = $1 AND question_id = $2
		ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, s.runID, questionID.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgres: list answers %s: %w", questionID.Hex(), err)
	}
	defer rows.Close()

	var entries []domain.AnswerEntry
	for rows.Next() {
		var (
			qid, prev, hist, answerer, bond, answer string
			e                                       domain.AnswerEntry
			ts                                      int64
		)
		if err := rows.Scan(&qid, &e.Seq, &prev, &hist, &answerer, &bond, &answer, &e.IsCommitment, &ts); err != nil {
			return nil, fmt.Errorf("postgres: scan answer: %w", err)
		}

		var sc scanner
		e.QuestionID = sc.hash(qid)
		e.PrevHistoryHash = sc.hash(prev)
		e.HistoryHash = sc.hash(hist)
		e.Answerer = sc.address(answerer)
		e.Bond = sc.amount(bond)
		e.Answer = sc.hash(answer)
		e.Timestamp = uint32(ts)
		if sc.err != nil {
			return nil, sc.err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list answers rows: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.AnswerStore = (*AnswerStore)(nil)
