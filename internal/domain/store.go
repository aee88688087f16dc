package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AnswerStore persists the answer log of every question.
type AnswerStore interface {
	Append(ctx context.Context, entry AnswerEntry) error
	// ListByQuestion returns entries oldest first.
	ListByQuestion(ctx context.Context, questionID common.Hash) ([]AnswerEntry, error)
}

// QuestionStore persists question snapshots for querying outside the ledger.
type QuestionStore interface {
	Upsert(ctx context.Context, q Question) error
	GetByID(ctx context.Context, id common.Hash) (Question, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Question, error)
}

// ArbitrationStore persists the bridge's request snapshots.
type ArbitrationStore interface {
	Upsert(ctx context.Context, r ArbitrationRequest) error
	GetByQuestion(ctx context.Context, questionID common.Hash) (ArbitrationRequest, error)
}

// AuditEntry is a single audit log row. QuestionID is set when the detail
// named a question.
type AuditEntry struct {
	ID         int64          `json:"id"`
	Event      string         `json:"event"`
	QuestionID *common.Hash   `json:"question_id,omitempty"`
	Detail     map[string]any `json:"detail"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditFilter narrows an audit listing.
type AuditFilter struct {
	ListOpts
	// EventPrefix matches events by prefix, e.g. "event." or "archive.".
	EventPrefix string
	QuestionID  *common.Hash
}

// AuditStore persists an append-only audit log. A "question_id" hex string
// in the detail is indexed for filtering.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
