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

// QuestionStore implements domain.QuestionStore using PostgreSQL.
type QuestionStore struct {
	pool *pgxpool.Pool
}

// NewQuestionStore creates a new QuestionStore backed by the given connection pool.
func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

const questionColumns = `
	id, content_hash, template_id, text, asker, arbitrator, nonce,
	opening_ts, timeout, finalize_ts, is_pending_arbitration, bounty,
	best_answer, history_hash, bond, claimed, created_at`

// Upsert inserts or replaces the snapshot of a question.
func (s *QuestionStore) Upsert(ctx context.Context, q domain.Question) error {
	const query = `
		INSERT INTO questions (` + questionColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		ON CONFLICT (id) DO UPDATE SET
			finalize_ts            = EXCLUDED.finalize_ts,
			is_pending_arbitration = EXCLUDED.is_pending_arbitration,
			bounty                 = EXCLUDED.bounty,
			best_answer            = EXCLUDED.best_answer,
			history_hash           = EXCLUDED.history_hash,
			bond                   = EXCLUDED.bond,
			claimed                = EXCLUDED.claimed,
			updated_at             = NOW()`

	_, err := s.pool.Exec(ctx, query,
		q.ID.Hex(), q.ContentHash.Hex(), int64(q.TemplateID), q.Text,
		q.Asker.Hex(), q.Arbitrator.Hex(), amountText(q.Nonce),
		int64(q.OpeningTS), int64(q.Timeout), int64(q.FinalizeTS), q.IsPendingArbitration,
		amountText(q.Bounty), q.BestAnswer.Hex(), q.HistoryHash.Hex(), amountText(q.Bond),
		q.Claimed, int64(q.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert question %s: %w", q.ID.Hex(), err)
	}
	return nil
}

// GetByID returns the stored snapshot of a question, or domain.ErrNotFound.
func (s *QuestionStore) GetByID(ctx context.Context, id common.Hash) (domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	q, err := scanQuestion(s.pool.QueryRow(ctx, query, id.Hex()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, fmt.Errorf("postgres: question %s: %w", id.Hex(), domain.ErrNotFound)
		}
		return domain.Question{}, fmt.Errorf("postgres: get question %s: %w", id.Hex(), err)
	}
	return q, nil
}

// ListRecent returns questions newest first. Since and Until filter on the
// last update time.
func (s *QuestionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND updated_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND updated_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC, id"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list questions rows: %w", err)
	}
	return out, nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q                                                  domain.Question
		id, content, asker, arbitrator, nonce, bounty      string
		best, history, bond                                string
		templateID, opening, timeout, finalize, createdAt int64
	)
	if err := row.Scan(
		&id, &content, &templateID, &q.Text, &asker, &arbitrator, &nonce,
		&opening, &timeout, &finalize, &q.IsPendingArbitration, &bounty,
		&best, &history, &bond, &q.Claimed, &createdAt,
	); err != nil {
		return domain.Question{}, err
	}

	var sc scanner
	q.ID = sc.hash(id)
	q.ContentHash = sc.hash(content)
	q.Asker = sc.address(asker)
	q.Arbitrator = sc.address(arbitrator)
	q.Nonce = sc.amount(nonce)
	q.Bounty = sc.amount(bounty)
	q.BestAnswer = sc.hash(best)
	q.HistoryHash = sc.hash(history)
	q.Bond = sc.amount(bond)
	q.TemplateID = uint64(templateID)
	q.OpeningTS = uint32(opening)
	q.Timeout = uint32(timeout)
	q.FinalizeTS = uint32(finalize)
	q.CreatedAt = uint32(createdAt)
	return q, sc.err
}

// Compile-time interface check.
var _ domain.QuestionStore = (*QuestionStore)(nil)
