package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"leadscout-engine/internal/config"
	"leadscout-engine/internal/crawl"
	"leadscout-engine/internal/domain"
)

type CrawlHandler struct {
	Orch       *crawl.Orchestrator
	CfgVal     *atomic.Value // config.Config
	Strategies crawl.StrategyFactory
}

// StartRequest overrides the saved config for a single run. Every field is
// optional; absent fields fall back to the config snapshot.
type StartRequest struct {
	Keyword  *string  `json:"keyword,omitempty"`
	Location *string  `json:"location,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

func (h CrawlHandler) Start(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)

	if r.Body != nil && r.ContentLength != 0 {
		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_json", "invalid request body: "+err.Error())
			return
		}
		cfg = applyOverrides(cfg, req)
	}

	runID, err := h.Orch.Start(cfg, h.Strategies)
	if err != nil {
		var cerr *crawl.ConfigError
		switch {
		case errors.As(err, &cerr):
			writeError(w, r, http.StatusBadRequest, "invalid_config", cerr.Reason)
		case errors.Is(err, crawl.ErrAlreadyRunning):
			writeError(w, r, http.StatusConflict, "already_running", err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "start_failed", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "run_id": runID})
}

func (h CrawlHandler) Stop(w http.ResponseWriter, r *http.Request) {
	stopping := h.Orch.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stopping": stopping})
}

func (h CrawlHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       h.Orch.Status(),
		"last_summary": h.Orch.LastSummary(),
	})
}

func applyOverrides(cfg config.Config, req StartRequest) config.Config {
	if req.Keyword != nil {
		cfg.Crawl.Keyword = *req.Keyword
	}
	if req.Location != nil {
		cfg.Crawl.Location = *req.Location
	}
	if len(req.Sources) > 0 {
		selected := make(map[string]bool, len(req.Sources))
		for _, s := range req.Sources {
			selected[s] = true
		}
		for _, src := range domain.AllSources {
			sc := cfg.Site(src)
			sc.Enabled = selected[string(src)]
			if cfg.Sites == nil {
				cfg.Sites = map[string]config.SiteConfig{}
			}
			cfg.Sites[string(src)] = sc
		}
	}
	return cfg
}
