package httpapi

import (
	"net/http"

	"leadscout-engine/internal/domain"
	"leadscout-engine/internal/store"
)

type LeadsHandler struct {
	DB *store.DB
}

func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := store.ListLeadsOpts{
		Window:     q.Get("window"),
		ActiveOnly: q.Get("active") == "1" || q.Get("active") == "true",
		Limit:      queryInt(r, "limit", 200),
	}
	if raw := q.Get("source"); raw != "" {
		src := domain.Source(raw)
		if !src.Valid() {
			writeError(w, r, http.StatusBadRequest, "bad_source", "unknown source: "+raw)
			return
		}
		opts.Source = string(src)
	}

	leads, err := store.ListLeads(r.Context(), h.DB.Pool, opts)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}
