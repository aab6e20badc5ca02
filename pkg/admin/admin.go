// Package admin implements the Admin HTTP Surface (Component H): CRUD over
// the configuration document, a read-only view of per-provider runtime
// state, and a live tail of the request log, for operators. It sits beside
// the Proxy Engine on the same mux rather than inside the caller-facing
// request path.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/raikyou/uniapi/pkg/config"
	"github.com/raikyou/uniapi/pkg/configstore"
	"github.com/raikyou/uniapi/pkg/proxy/middleware"
	"github.com/raikyou/uniapi/pkg/requestlog"
	"github.com/raikyou/uniapi/pkg/routing"
	"github.com/raikyou/uniapi/pkg/security/auth"
)

// adminTimeout bounds every admin route except the log stream, which is a
// deliberately long-lived SSE connection.
const adminTimeout = 10 * time.Second

// Handler serves the admin routes described in SPEC_FULL.md §4.H.
type Handler struct {
	Store    *configstore.Store
	Pool     *routing.Pool
	Registry *routing.Registry
	Log      *requestlog.Logger
}

// New returns a Handler backed by the given Config Store, Provider Pool,
// runtime Registry, and Request Logger.
func New(store *configstore.Store, pool *routing.Pool, registry *routing.Registry, log *requestlog.Logger) *Handler {
	return &Handler{Store: store, Pool: pool, Registry: registry, Log: log}
}

// Register mounts the admin routes on mux, each wrapped by the same
// credential check callers must present (spec.md §4.E).
func (h *Handler) Register(mux *http.ServeMux) {
	timeout := middleware.Timeout(adminTimeout)
	mux.Handle("GET /admin/config", timeout(h.authenticated(h.getConfig)))
	mux.Handle("PUT /admin/config", timeout(h.authenticated(h.putConfig)))
	mux.Handle("GET /admin/providers", timeout(h.authenticated(h.getProviders)))
	mux.Handle("POST /admin/providers/{name}/reset", timeout(h.authenticated(h.resetProvider)))
	mux.Handle("GET /admin/logs", timeout(h.authenticated(h.getLogs)))
	mux.HandleFunc("GET /admin/logs/stream", h.authenticated(h.streamLogs))
}

// authenticated wraps next with the gateway's single local credential check,
// matching whatever scheme (bearer, X-API-Key, x-goog-api-key) the caller
// used.
func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := h.Store.Snapshot().Doc
		authorized, _ := auth.New(cfg.APIKey).Authenticate(r)
		if !authorized {
			writeJSONError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}

func writeJSONError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

const redacted = "****"

// redact returns a copy of cfg with api_key and every provider's api_key
// masked, so a config dump never leaks a credential to an admin viewer's
// terminal scrollback or log aggregator.
func redact(cfg *config.Config) config.Config {
	out := *cfg
	if out.APIKey != "" {
		out.APIKey = redacted
	}
	out.Providers = make([]config.ProviderConfig, len(cfg.Providers))
	copy(out.Providers, cfg.Providers)
	for i := range out.Providers {
		if out.Providers[i].APIKey != "" {
			out.Providers[i].APIKey = redacted
		}
	}
	return out
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.Store.Snapshot().Doc
	writeJSON(w, http.StatusOK, redact(cfg))
}

func (h *Handler) putConfig(w http.ResponseWriter, r *http.Request) {
	var doc config.Config
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	config.ApplyDefaults(&doc)
	if err := h.Store.Write(&doc); err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, verr)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, redact(&doc))
}

// providerStatus is the admin-facing view of one provider's runtime state.
type providerStatus struct {
	Provider         string   `json:"provider"`
	Enabled          bool     `json:"enabled"`
	Priority         int      `json:"priority"`
	InCooldown       bool     `json:"in_cooldown"`
	CooldownUntil    string   `json:"cooldown_until,omitempty"`
	LastError        string   `json:"last_error,omitempty"`
	DiscoveredModels []string `json:"discovered_models,omitempty"`
}

func (h *Handler) getProviders(w http.ResponseWriter, r *http.Request) {
	cfg := h.Store.Snapshot().Doc
	now := time.Now()
	out := make([]providerStatus, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		snap := h.Registry.Get(pc.Provider).Snapshot()
		ps := providerStatus{
			Provider:         pc.Provider,
			Enabled:          pc.IsEnabled(),
			Priority:         pc.Priority,
			InCooldown:       now.Before(snap.CooldownUntil),
			LastError:        snap.LastError,
			DiscoveredModels: snap.DiscoveredModels,
		}
		if !snap.CooldownUntil.IsZero() {
			ps.CooldownUntil = snap.CooldownUntil.Format(timeFormat)
		}
		out = append(out, ps)
	}
	writeJSON(w, http.StatusOK, out)
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (h *Handler) resetProvider(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		writeJSONError(w, http.StatusBadRequest, "provider name required")
		return
	}
	h.Pool.Reset(name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Log.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
