// Package proxy implements the Proxy Engine (Component F): the reverse-proxy
// request handler that authenticates, extracts the target model, iterates
// failover candidates, forwards transparently, and streams back the first
// successful response.
package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/raikyou/uniapi/pkg/config"
	"github.com/raikyou/uniapi/pkg/configstore"
	"github.com/raikyou/uniapi/pkg/providers"
	"github.com/raikyou/uniapi/pkg/proxy/middleware"
	"github.com/raikyou/uniapi/pkg/resolver"
	"github.com/raikyou/uniapi/pkg/routing"
	"github.com/raikyou/uniapi/pkg/security/auth"
	"github.com/raikyou/uniapi/pkg/telemetry/tracing"
)

// catalogPath is the one path the engine serves itself rather than
// forwarding: the aggregated model catalog.
const catalogPath = "/v1/models"

// Outcome describes one terminated caller request, for the Request Logger.
// The Proxy Engine never depends on pkg/requestlog directly: Recorder is
// satisfied by whatever logs it (kept decoupled per the leaves-first build
// order — Component G is built after Component F).
type Outcome struct {
	RequestID          string
	Path               string
	RequestedModel     string
	EffectiveModel     string
	Provider           string
	Streaming          bool
	StatusCode         int
	TotalLatencyMs     int64
	FirstByteLatencyMs int64
	ResponseBody       []byte // only populated for non-streamed responses forwarded to the caller (success or client fault)
	CandidateErrors    []CandidateError
}

// CandidateError is one failed attempt's summary, surfaced both in the 502
// exhaustion body and in the Outcome passed to the Request Logger.
type CandidateError struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// Recorder receives one Outcome per request that reaches the candidate loop
// (a forwarded response or exhaustion). Catalog requests and requests
// rejected earlier (401, 400, 503 with no eligible provider) produce none.
type Recorder interface {
	Record(Outcome)
}

// nopRecorder discards outcomes; used when the engine is built without a
// Request Logger wired in (e.g. in isolation tests).
type nopRecorder struct{}

func (nopRecorder) Record(Outcome) {}

// Engine is the Proxy Engine's http.Handler.
type Engine struct {
	Store    *configstore.Store
	Pool     *routing.Pool
	HTTP     *providers.Pool
	Resolver *resolver.Resolver
	Recorder Recorder
	Tracer   *tracing.Tracer
}

// New returns a ready Engine. A nil recorder is replaced with a no-op; a nil
// tracer is replaced with a disabled one (noop spans).
func New(store *configstore.Store, pool *routing.Pool, httpPool *providers.Pool, res *resolver.Resolver, recorder Recorder, tracer *tracing.Tracer) *Engine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if tracer == nil {
		tracer, _ = tracing.New(tracing.Config{Enabled: false})
	}
	return &Engine{Store: store, Pool: pool, HTTP: httpPool, Resolver: res, Recorder: recorder, Tracer: tracer}
}

func writeJSONError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// ServeHTTP implements spec.md §4.F's request-handling procedure.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap := e.Store.Snapshot()
	cfg := snap.Doc

	authorized, scheme := auth.New(cfg.APIKey).Authenticate(r)
	if !authorized {
		writeJSONError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == catalogPath {
		e.serveCatalog(w, cfg)
		return
	}

	eb, err := extractRequest(r, cfg.Preferences.MaxBodyBytes)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if eb.model == "" {
		writeJSONError(w, http.StatusBadRequest, "model field required")
		return
	}

	streaming := wantsStreaming(r, eb)

	deadline := cfg.Preferences.ModelTimeout()

	byName := make(map[string]config.ProviderConfig, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		byName[pc.Provider] = pc
	}
	// discoveryLookup resolves against a provider's explicit list or cached
	// catalog first; on a miss it triggers catalog discovery lazily (once
	// per provider, until its config entry changes) before giving up, per
	// spec.md's "populated lazily at first request needing them" contract.
	discoveryLookup := func(providerName, model string) (string, bool) {
		pc, ok := byName[providerName]
		if !ok {
			return "", false
		}
		return e.Resolver.ResolveOrDiscover(r.Context(), pc, model, deadline)
	}

	candidates := e.Pool.Candidates(cfg, start, eb.model, discoveryLookup)
	if len(candidates) == 0 {
		writeJSONError(w, http.StatusServiceUnavailable, "no provider available for model")
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	cooldown := cfg.Preferences.CooldownPeriod()

	var errs []CandidateError
	for attempt, cand := range candidates {
		provider := cand.Handle.Config.Provider

		ctx, span := e.Tracer.Start(r.Context(), "proxy.attempt")
		tracing.SetCandidateAttributes(span, requestID, provider, cand.EffectiveModel, attempt+1)
		r = r.WithContext(ctx)

		body, err := eb.bodyReader(cand.EffectiveModel)
		if err != nil {
			errs = append(errs, CandidateError{Provider: provider, Reason: err.Error()})
			e.Pool.MarkFailure(provider, err.Error(), time.Now(), cooldown)
			tracing.SetError(span, err)
			span.End()
			continue
		}

		targetURL := strings.TrimRight(cand.Handle.Config.BaseURL, "/") + r.URL.Path
		if r.URL.RawQuery != "" {
			targetURL += "?" + r.URL.RawQuery
		}
		header := buildOutboundHeader(r.Header, scheme, cand.Handle.Config.APIKey)

		resp, err := e.HTTP.Send(ctx, r.Method, targetURL, header, body, deadline)
		if err != nil {
			reason := classifyTransportError(err)
			errs = append(errs, CandidateError{Provider: provider, Reason: reason})
			// A caller disconnect cancels the shared r.Context() that every
			// attempt's ctx derives from; that fault is the caller's, not
			// this provider's, so skip the cooldown (spec.md §5).
			attemptCooldown := cooldown
			if r.Context().Err() != nil {
				attemptCooldown = 0
			}
			e.Pool.MarkFailure(provider, reason, time.Now(), attemptCooldown)
			tracing.SetError(span, errors.New(reason))
			span.End()
			continue
		}

		forcedStream := streaming || strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 400:
			e.Pool.MarkSuccess(provider)
			tracing.SetError(span, nil)
			span.End()
			e.forwardSuccess(w, resp, forcedStream, start, requestID, r.URL.Path, eb.model, cand.EffectiveModel, provider)
			return

		case resp.StatusCode == http.StatusTooManyRequests && !cfg.Preferences.Treat429AsClientFault:
			reason := "upstream status 429"
			errs = append(errs, CandidateError{Provider: provider, Reason: reason})
			e.Pool.MarkFailure(provider, reason, time.Now(), cooldown)
			resp.Body.Close()
			tracing.SetError(span, errors.New(reason))
			span.End()
			continue

		case resp.StatusCode >= 500:
			reason := httpStatusReason(resp.StatusCode)
			errs = append(errs, CandidateError{Provider: provider, Reason: reason})
			e.Pool.MarkFailure(provider, reason, time.Now(), cooldown)
			resp.Body.Close()
			tracing.SetError(span, errors.New(reason))
			span.End()
			continue

		default:
			// 4xx (429 included, when configured as client fault): client
			// fault. Forward verbatim, no cooldown, stop the loop.
			e.Pool.MarkSuccess(provider)
			tracing.SetError(span, nil)
			span.End()
			e.forwardClientFault(w, resp, start, requestID, r.URL.Path, eb.model, cand.EffectiveModel, provider)
			return
		}
	}

	e.Recorder.Record(Outcome{
		RequestID:       requestID,
		Path:            r.URL.Path,
		RequestedModel:  eb.model,
		Streaming:       streaming,
		StatusCode:      http.StatusBadGateway,
		TotalLatencyMs:  time.Since(start).Milliseconds(),
		CandidateErrors: errs,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"detail": "all providers failed",
		"errors": errs,
	})
}
