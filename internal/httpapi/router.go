package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Crawl
	crh := CrawlHandler{Orch: d.Orch, CfgVal: d.CfgVal, Strategies: d.Strategies}
	mux.HandleFunc("/crawl/start", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: crh.Start,
	}))
	mux.HandleFunc("/crawl/stop", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: crh.Stop,
	}))
	mux.HandleFunc("/crawl/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: crh.Status,
	}))

	// Leads
	lh := LeadsHandler{DB: d.DB}
	mux.HandleFunc("/leads", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.List,
	}))

	// Run history
	rh := RunLogsHandler{DB: d.DB}
	mux.HandleFunc("/runlogs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.List,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		Hub:         d.Hub,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/site", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetSiteCredential,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Health + metrics
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: Health,
	}))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
