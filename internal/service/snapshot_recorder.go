package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// StateReader reads contract state outside a call. OracleService
// implements it.
type StateReader interface {
	Question(ctx context.Context, id common.Hash) (domain.Question, error)
	ArbitrationRequest(ctx context.Context, questionID common.Hash) (domain.ArbitrationRequest, error)
}

// SnapshotRecorder mirrors question and arbitration state into the
// relational store. Events mark questions dirty; Flush writes one snapshot
// per question per committed call. It is driven by a single dispatcher
// worker and is not safe for concurrent use.
type SnapshotRecorder struct {
	state        StateReader
	questions    domain.QuestionStore
	arbitrations domain.ArbitrationStore
	logger       *slog.Logger

	dirtyQuestions    []common.Hash
	dirtyArbitrations []common.Hash
}

// NewSnapshotRecorder creates a recorder. Either store may be nil.
func NewSnapshotRecorder(state StateReader, questions domain.QuestionStore, arbitrations domain.ArbitrationStore, logger *slog.Logger) *SnapshotRecorder {
	return &SnapshotRecorder{
		state:        state,
		questions:    questions,
		arbitrations: arbitrations,
		logger:       logger.With(slog.String("component", "snapshot_recorder")),
	}
}

func (r *SnapshotRecorder) Name() string { return "snapshot_recorder" }

func (r *SnapshotRecorder) HandleEvent(_ context.Context, ev domain.Event) error {
	if ev.QuestionID == (common.Hash{}) {
		return nil
	}
	r.dirtyQuestions = appendUnique(r.dirtyQuestions, ev.QuestionID)
	switch ev.Type {
	case domain.EventRequestArbitration, domain.EventMarketCreated, domain.EventAnswerReported:
		r.dirtyArbitrations = appendUnique(r.dirtyArbitrations, ev.QuestionID)
	}
	return nil
}

// Flush writes the snapshots of every question touched since the last
// flush.
func (r *SnapshotRecorder) Flush(ctx context.Context) error {
	questions, arbitrations := r.dirtyQuestions, r.dirtyArbitrations
	r.dirtyQuestions, r.dirtyArbitrations = nil, nil

	var errs []error
	if r.questions != nil {
		for _, id := range questions {
			q, err := r.state.Question(ctx, id)
			if err == nil {
				err = r.questions.Upsert(ctx, q)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("service: snapshot question %s: %w", id.Hex(), err))
			}
		}
	}
	if r.arbitrations != nil {
		for _, id := range arbitrations {
			req, err := r.state.ArbitrationRequest(ctx, id)
			if err == nil {
				err = r.arbitrations.Upsert(ctx, req)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("service: snapshot arbitration %s: %w", id.Hex(), err))
			}
		}
	}
	if len(errs) == 0 && len(questions)+len(arbitrations) > 0 {
		r.logger.DebugContext(ctx, "snapshots recorded",
			slog.Int("questions", len(questions)),
			slog.Int("arbitrations", len(arbitrations)),
		)
	}
	return errors.Join(errs...)
}

func appendUnique(ids []common.Hash, id common.Hash) []common.Hash {
	for _, have := range ids {
		if have == id {
			return ids
		}
	}
	return append(ids, id)
}
