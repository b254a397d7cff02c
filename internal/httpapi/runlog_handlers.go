package httpapi

import (
	"net/http"

	"leadscout-engine/internal/domain"
	"leadscout-engine/internal/store"
)

type RunLogsHandler struct {
	DB *store.DB
}

func (h RunLogsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	entries, err := store.ListRunLogs(r.Context(), h.DB.Pool, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if entries == nil {
		entries = []domain.RunLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
