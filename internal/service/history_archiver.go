package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// HistorySource returns a question's answer log, oldest first.
type HistorySource interface {
	History(ctx context.Context, questionID common.Hash) ([]domain.AnswerEntry, error)
}

// HistoryArchiver uploads the settled history of every claimed question to
// object storage. Payouts are collected from LogClaim events and the archive
// is written once per claiming call. Driven by a single dispatcher worker.
type HistoryArchiver struct {
	archive domain.HistoryArchive
	state   StateReader
	history HistorySource
	logger  *slog.Logger

	order   []common.Hash
	payouts map[common.Hash][]domain.ClaimData
}

// NewHistoryArchiver creates an archiver.
func NewHistoryArchiver(archive domain.HistoryArchive, state StateReader, history HistorySource, logger *slog.Logger) *HistoryArchiver {
	return &HistoryArchiver{
		archive: archive,
		state:   state,
		history: history,
		logger:  logger.With(slog.String("component", "history_archiver")),
		payouts: make(map[common.Hash][]domain.ClaimData),
	}
}

func (a *HistoryArchiver) Name() string { return "history_archiver" }

func (a *HistoryArchiver) HandleEvent(_ context.Context, ev domain.Event) error {
	if ev.Type != domain.EventClaim {
		return nil
	}
	d, ok := ev.Data.(domain.ClaimData)
	if !ok {
		return fmt.Errorf("service: archive %s: unexpected payload %T", ev.QuestionID.Hex(), ev.Data)
	}
	if _, seen := a.payouts[ev.QuestionID]; !seen {
		a.order = append(a.order, ev.QuestionID)
	}
	a.payouts[ev.QuestionID] = append(a.payouts[ev.QuestionID], d)
	return nil
}

// Flush archives every question claimed in the last batch.
func (a *HistoryArchiver) Flush(ctx context.Context) error {
	if len(a.order) == 0 {
		return nil
	}
	order, payouts := a.order, a.payouts
	a.order, a.payouts = nil, make(map[common.Hash][]domain.ClaimData)

	var errs []error
	for _, id := range order {
		if err := a.archiveOne(ctx, id, payouts[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *HistoryArchiver) archiveOne(ctx context.Context, id common.Hash, payouts []domain.ClaimData) error {
	q, err := a.state.Question(ctx, id)
	if err != nil {
		return fmt.Errorf("service: archive %s: %w", id.Hex(), err)
	}
	entries, err := a.history.History(ctx, id)
	if err != nil {
		return fmt.Errorf("service: archive %s: %w", id.Hex(), err)
	}
	path, err := a.archive.Archive(ctx, domain.SettledHistory{
		Question: q,
		Entries:  entries,
		Payouts:  payouts,
	})
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "settled history archived",
		slog.String("question_id", id.Hex()),
		slog.String("path", path),
		slog.Int("entries", len(entries)),
	)
	return nil
}
