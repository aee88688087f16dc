package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

// ArchiveHandler serves settled histories from object storage.
type ArchiveHandler struct {
	archive domain.HistoryArchive
	logger  *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archive domain.HistoryArchive, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
		logger:  logHandler(logger, "archive"),
	}
}

// ListArchived returns the ids of every archived question.
// GET /api/archive
func (h *ArchiveHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	ids, err := h.archive.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list archive", err)
		return
	}
	slices.SortFunc(ids, func(a, b common.Hash) int { return a.Cmp(b) })
	if ids == nil {
		ids = []common.Hash{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": ids})
}

// GetArchived returns a question's settled history.
// GET /api/questions/{id}/archive
func (h *ArchiveHandler) GetArchived(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	settled, err := h.archive.Load(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "load archive", err)
		return
	}
	writeJSON(w, http.StatusOK, settled)
}
