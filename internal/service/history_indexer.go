package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/arbitrator"
	"github.com/alanyoungcy/realityarb/internal/domain"
)

// HistoryIndexer keeps the answer log of every question, rebuilt from
// LogNewAnswer events, so callers never have to assemble claim records by
// hand. With a store configured every entry is written through, and a
// question missing from memory is loaded back from the store.
type HistoryIndexer struct {
	store  domain.AnswerStore
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[common.Hash][]domain.AnswerEntry
}

// NewHistoryIndexer creates an indexer. store may be nil.
func NewHistoryIndexer(store domain.AnswerStore, logger *slog.Logger) *HistoryIndexer {
	return &HistoryIndexer{
		store:   store,
		logger:  logger.With(slog.String("component", "history_indexer")),
		entries: make(map[common.Hash][]domain.AnswerEntry),
	}
}

func (x *HistoryIndexer) Name() string { return "history_indexer" }

// HandleEvent appends LogNewAnswer events to the question's log. Entries
// whose previous history hash does not match the current tip are ignored so
// that replayed events are idempotent. A new first answer replaces a log
// left over from another chain.
func (x *HistoryIndexer) HandleEvent(ctx context.Context, ev domain.Event) error {
	if ev.Type != domain.EventNewAnswer {
		return nil
	}
	d, ok := ev.Data.(domain.NewAnswerData)
	if !ok {
		return fmt.Errorf("service: index %s: unexpected payload %T", ev.QuestionID.Hex(), ev.Data)
	}

	if _, err := x.load(ctx, ev.QuestionID); err != nil {
		x.logger.WarnContext(ctx, "answer log not loaded from store",
			slog.String("question_id", ev.QuestionID.Hex()),
			slog.String("error", err.Error()),
		)
	}

	x.mu.Lock()
	log := x.entries[ev.QuestionID]
	// A first answer that differs from the first one on record means the
	// record belongs to an earlier chain that reused this question id.
	if d.PrevHistoryHash == (common.Hash{}) && len(log) > 0 && log[0].HistoryHash != d.HistoryHash {
		x.logger.WarnContext(ctx, "stale answer log discarded",
			slog.String("question_id", ev.QuestionID.Hex()),
			slog.Int("entries", len(log)),
		)
		log = nil
	}
	var tip common.Hash
	if n := len(log); n > 0 {
		tip = log[n-1].HistoryHash
	}
	if d.PrevHistoryHash != tip {
		x.mu.Unlock()
		x.logger.DebugContext(ctx, "answer out of sequence, skipped",
			slog.String("question_id", ev.QuestionID.Hex()),
			slog.String("history_hash", d.HistoryHash.Hex()),
		)
		return nil
	}
	entry := domain.AnswerEntry{
		QuestionID:      ev.QuestionID,
		Seq:             len(log),
		PrevHistoryHash: d.PrevHistoryHash,
		HistoryHash:     d.HistoryHash,
		Answerer:        d.User,
		Bond:            d.Bond.Clone(),
		Answer:          d.Answer,
		IsCommitment:    d.IsCommitment,
		Timestamp:       ev.Timestamp,
	}
	x.entries[ev.QuestionID] = append(log, entry)
	x.mu.Unlock()

	if x.store != nil {
		if err := x.store.Append(ctx, entry); err != nil {
			return fmt.Errorf("service: index %s seq %d: %w", ev.QuestionID.Hex(), entry.Seq, err)
		}
	}
	return nil
}

// History returns a question's answers, oldest first.
func (x *HistoryIndexer) History(ctx context.Context, questionID common.Hash) ([]domain.AnswerEntry, error) {
	log, err := x.load(ctx, questionID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnswerEntry, len(log))
	for i, e := range log {
		out[i] = e
		out[i].Bond = e.Bond.Clone()
	}
	return out, nil
}

// ClaimRecord returns the complete history of a question in the newest-first
// layout ClaimWinnings expects.
func (x *HistoryIndexer) ClaimRecord(ctx context.Context, questionID common.Hash) (domain.ClaimRecord, error) {
	log, err := x.History(ctx, questionID)
	if err != nil {
		return domain.ClaimRecord{}, err
	}
	if len(log) == 0 {
		return domain.ClaimRecord{}, fmt.Errorf("service: claim record %s: %w", questionID.Hex(), domain.ErrNotAnswered)
	}
	return domain.ClaimRecordFromEntries(log), nil
}

// Tip returns the newest history entry in the form the arbitrator needs to
// report an answer.
func (x *HistoryIndexer) Tip(ctx context.Context, questionID common.Hash) (arbitrator.ReportTip, error) {
	log, err := x.History(ctx, questionID)
	if err != nil {
		return arbitrator.ReportTip{}, err
	}
	if len(log) == 0 {
		return arbitrator.ReportTip{}, fmt.Errorf("service: tip %s: %w", questionID.Hex(), domain.ErrNotAnswered)
	}
	last := log[len(log)-1]
	return arbitrator.ReportTip{
		LastHistoryHash:          last.PrevHistoryHash,
		LastAnswerOrCommitmentID: last.Answer,
		LastBond:                 last.Bond,
		LastAnswerer:             last.Answerer,
		IsCommitment:             last.IsCommitment,
	}, nil
}

// load returns the in-memory log, filling it from the store on a miss.
func (x *HistoryIndexer) load(ctx context.Context, questionID common.Hash) ([]domain.AnswerEntry, error) {
	x.mu.RLock()
	log, ok := x.entries[questionID]
	x.mu.RUnlock()
	if ok || x.store == nil {
		return log, nil
	}

	stored, err := x.store.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("service: load history %s: %w", questionID.Hex(), err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if log, ok := x.entries[questionID]; ok {
		return log, nil
	}
	if len(stored) > 0 {
		x.entries[questionID] = stored
	}
	return stored, nil
}
