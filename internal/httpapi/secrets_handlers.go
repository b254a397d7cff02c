package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"leadscout-engine/internal/config"
	"leadscout-engine/internal/domain"
	"leadscout-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSiteCredentialReq struct {
	Source string `json:"source"`
	Secret string `json:"secret"`
}

func (h SecretsHandler) SetSiteCredential(w http.ResponseWriter, r *http.Request) {
	var req setSiteCredentialReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	src := domain.Source(req.Source)
	if !src.Valid() {
		http.Error(w, "unknown source: "+req.Source, http.StatusBadRequest)
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	login := cfg.Site(src).LoginAccount
	if login == "" {
		http.Error(w, "no login account configured for "+req.Source, http.StatusBadRequest)
		return
	}

	account := secrets.SiteKeyringAccount(src, login)
	if err := secrets.SetSiteCredential(account, req.Secret); err != nil {
		http.Error(w, "failed to store credential: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
