package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// RecordsHandler serves the persisted question snapshots and audit log.
type RecordsHandler struct {
	questions domain.QuestionStore
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewRecordsHandler creates a RecordsHandler.
func NewRecordsHandler(questions domain.QuestionStore, audit domain.AuditStore, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		questions: questions,
		audit:     audit,
		logger:    logHandler(logger, "records"),
	}
}

// ListQuestions returns the most recently asked questions.
// GET /api/questions?limit=&offset=
func (h *RecordsHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	opts, err := listOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	qs, err := h.questions.ListRecent(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list questions", err)
		return
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs})
}

// ListAudit returns audit entries newest first, optionally narrowed to one
// question or an event type prefix.
// GET /api/audit?question_id=&event=&limit=&offset=
func (h *RecordsHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts, err := listOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := domain.AuditFilter{
		ListOpts:    opts,
		EventPrefix: r.URL.Query().Get("event"),
	}
	if s := r.URL.Query().Get("question_id"); s != "" {
		id, err := parseHash("question_id", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.QuestionID = &id
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, "list audit", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func listOpts(r *http.Request) (domain.ListOpts, error) {
	opts := domain.ListOpts{Limit: defaultPageSize}
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid limit %q", s)
		}
		opts.Limit = min(n, maxPageSize)
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid offset %q", s)
		}
		opts.Offset = n
	}
	return opts, nil
}
