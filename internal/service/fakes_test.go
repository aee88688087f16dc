package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type memAnswers struct {
	mu      sync.Mutex
	entries map[common.Hash][]domain.AnswerEntry
	lists   int
}

func newMemAnswers() *memAnswers {
	return &memAnswers{entries: make(map[common.Hash][]domain.AnswerEntry)}
}

func (m *memAnswers) Append(_ context.Context, e domain.AnswerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.QuestionID] = append(m.entries[e.QuestionID], e)
	return nil
}

func (m *memAnswers) ListByQuestion(_ context.Context, id common.Hash) ([]domain.AnswerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	return append([]domain.AnswerEntry(nil), m.entries[id]...), nil
}

type memQuestions struct {
	mu   sync.Mutex
	rows map[common.Hash]domain.Question
}

func (m *memQuestions) Upsert(_ context.Context, q domain.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[common.Hash]domain.Question)
	}
	m.rows[q.ID] = q
	return nil
}

func (m *memQuestions) GetByID(_ context.Context, id common.Hash) (domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.rows[id]
	if !ok {
		return domain.Question{}, domain.ErrNotFound
	}
	return q, nil
}

func (m *memQuestions) ListRecent(context.Context, domain.ListOpts) ([]domain.Question, error) {
	return nil, nil
}

type memArbitrations struct {
	mu   sync.Mutex
	rows map[common.Hash]domain.ArbitrationRequest
}

func (m *memArbitrations) Upsert(_ context.Context, r domain.ArbitrationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[common.Hash]domain.ArbitrationRequest)
	}
	m.rows[r.QuestionID] = r
	return nil
}

func (m *memArbitrations) GetByQuestion(_ context.Context, id common.Hash) (domain.ArbitrationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domain.ArbitrationRequest{}, domain.ErrNotFound
	}
	return r, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (m *memAudit) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

type memArchive struct {
	mu    sync.Mutex
	saved map[common.Hash]domain.SettledHistory
	puts  int
}

func (m *memArchive) Archive(_ context.Context, h domain.SettledHistory) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[common.Hash]domain.SettledHistory)
	}
	h.ArchivedAt = time.Unix(1, 0)
	m.saved[h.Question.ID] = h
	m.puts++
	return "history/" + h.Question.ID.Hex() + ".json", nil
}

func (m *memArchive) Load(_ context.Context, id common.Hash) (domain.SettledHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.saved[id]
	if !ok {
		return domain.SettledHistory{}, domain.ErrNotFound
	}
	return h, nil
}

func (m *memArchive) List(context.Context) ([]common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]common.Hash, 0, len(m.saved))
	for id := range m.saved {
		ids = append(ids, id)
	}
	return ids, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.EventType
}

func (n *recordingNotifier) NotifyEvent(_ context.Context, ev domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev.Type)
	return nil
}

func (n *recordingNotifier) snapshot() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.EventType(nil), n.events...)
}
