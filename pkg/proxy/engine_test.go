package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raikyou/uniapi/pkg/config"
	"github.com/raikyou/uniapi/pkg/configstore"
	"github.com/raikyou/uniapi/pkg/providers"
	"github.com/raikyou/uniapi/pkg/resolver"
	"github.com/raikyou/uniapi/pkg/routing"
)

type recordingRecorder struct {
	outcomes []Outcome
}

func (r *recordingRecorder) Record(o Outcome) {
	r.outcomes = append(r.outcomes, o)
}

func writeConfigFile(t *testing.T, doc *config.Config) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := config.Write(path, doc); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestEngine(t *testing.T, doc *config.Config) (*Engine, *recordingRecorder) {
	t.Helper()
	path := writeConfigFile(t, doc)
	store, err := configstore.New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("configstore.New: %v", err)
	}

	registry := routing.NewRegistry()
	pool := routing.NewPool(registry)

	httpPool, err := providers.NewPool(providers.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("providers.NewPool: %v", err)
	}

	res := resolver.New(httpPool, registry)
	rec := &recordingRecorder{}
	return New(store, pool, httpPool, res, rec, nil), rec
}

func baseConfig(providerURL string, priority int) *config.Config {
	return &config.Config{
		APIKey: "secret",
		Preferences: config.Preferences{
			ModelTimeoutSeconds: 5,
			MaxBodyBytes:        1 << 20,
		},
		Providers: []config.ProviderConfig{
			{
				Provider: "primary",
				BaseURL:  providerURL,
				APIKey:   "upstream-key",
				Priority: priority,
				Model:    []config.ModelEntry{{Pattern: "gpt-4"}},
			},
		},
	}
}

func TestEngine_RejectsMissingCredential(t *testing.T) {
	engine, _ := newTestEngine(t, baseConfig("http://127.0.0.1:0", 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4"}`))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestEngine_MissingModelField(t *testing.T) {
	engine, _ := newTestEngine(t, baseConfig("http://127.0.0.1:0", 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEngine_NoProviderAvailable(t *testing.T) {
	engine, _ := newTestEngine(t, baseConfig("http://127.0.0.1:0", 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"unknown-model"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestEngine_SuccessfulForward(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer upstream-key" {
			t.Errorf("upstream got Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	engine, rec := newTestEngine(t, baseConfig(upstream.URL, 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0].Provider != "primary" {
		t.Fatalf("expected one recorded outcome for primary, got %+v", rec.outcomes)
	}
}

func TestEngine_FailoverOnUpstreamFault(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer healthy.Close()

	cfg := &config.Config{
		APIKey: "secret",
		Preferences: config.Preferences{
			ModelTimeoutSeconds: 5,
			MaxBodyBytes:        1 << 20,
		},
		Providers: []config.ProviderConfig{
			{Provider: "broken", BaseURL: failing.URL, APIKey: "upstream-key", Priority: 10, Model: []config.ModelEntry{{Pattern: "gpt-4"}}},
			{Provider: "healthy", BaseURL: healthy.URL, APIKey: "upstream-key", Priority: 5, Model: []config.ModelEntry{{Pattern: "gpt-4"}}},
		},
	}
	engine, _ := newTestEngine(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from healthy fallback, body=%s", w.Code, w.Body.String())
	}
}

func TestEngine_CallerDisconnectSkipsCooldown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	cfg := baseConfig(upstream.URL, 10)
	path := writeConfigFile(t, cfg)
	store, err := configstore.New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("configstore.New: %v", err)
	}

	registry := routing.NewRegistry()
	pool := routing.NewPool(registry)
	httpPool, err := providers.NewPool(providers.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("providers.NewPool: %v", err)
	}
	res := resolver.New(httpPool, registry)
	engine := New(store, pool, httpPool, res, &recordingRecorder{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4"}`)).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if registry.Get("primary").InCooldown(time.Now()) {
		t.Error("expected a caller-disconnect failure not to put the provider into cooldown")
	}
}

func TestEngine_ClientFaultDoesNotFailOver(t *testing.T) {
	calls := 0
	badRequest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer badRequest.Close()

	neverCalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("second candidate should never be called for a client fault")
		w.WriteHeader(http.StatusOK)
	}))
	defer neverCalled.Close()

	cfg := &config.Config{
		APIKey: "secret",
		Preferences: config.Preferences{
			ModelTimeoutSeconds: 5,
			MaxBodyBytes:        1 << 20,
		},
		Providers: []config.ProviderConfig{
			{Provider: "strict", BaseURL: badRequest.URL, APIKey: "upstream-key", Priority: 10, Model: []config.ModelEntry{{Pattern: "gpt-4"}}},
			{Provider: "backup", BaseURL: neverCalled.URL, APIKey: "upstream-key", Priority: 5, Model: []config.ModelEntry{{Pattern: "gpt-4"}}},
		},
	}
	engine, _ := newTestEngine(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 forwarded verbatim", w.Code)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call to the client-fault provider, got %d", calls)
	}
}

func TestEngine_ExhaustionAggregatesErrors(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	cfg := baseConfig(down.URL, 1)
	engine, _ := newTestEngine(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["detail"] != "all providers failed" {
		t.Errorf("detail = %v", body["detail"])
	}
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) != 1 {
		t.Fatalf("expected 1 aggregated error, got %v", body["errors"])
	}
}

func TestEngine_AliasRewritesModelField(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(buf, &decoded)
		if decoded["model"] != "gpt-4-turbo" {
			t.Errorf("upstream received model = %v, want gpt-4-turbo", decoded["model"])
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{
		APIKey: "secret",
		Preferences: config.Preferences{
			ModelTimeoutSeconds: 5,
			MaxBodyBytes:        1 << 20,
		},
		Providers: []config.ProviderConfig{
			{
				Provider: "aliased",
				BaseURL:  upstream.URL,
				APIKey:   "upstream-key",
				Priority: 1,
				Model:    []config.ModelEntry{{Alias: "fast", Upstream: "gpt-4-turbo"}},
			},
		},
	}
	engine, _ := newTestEngine(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"fast","temperature":0.5}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}

func TestEngine_StreamingPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: chunk1\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: chunk2\n\n"))
		flusher.Flush()
	}))
	defer upstream.Close()

	engine, rec := newTestEngine(t, baseConfig(upstream.URL, 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4","stream":true}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "chunk1") || !strings.Contains(w.Body.String(), "chunk2") {
		t.Fatalf("expected both chunks in response body, got %q", w.Body.String())
	}
	if len(rec.outcomes) != 1 || !rec.outcomes[0].Streaming {
		t.Fatalf("expected one streamed outcome, got %+v", rec.outcomes)
	}
	if rec.outcomes[0].FirstByteLatencyMs < 0 {
		t.Errorf("expected a non-negative first-byte latency, got %d", rec.outcomes[0].FirstByteLatencyMs)
	}
}

func TestEngine_CatalogEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, baseConfig("http://127.0.0.1:0", 1))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	data, ok := body["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("expected 1 model in catalog, got %v", body["data"])
	}
	entry, ok := data[0].(map[string]any)
	if !ok || entry["name"] != entry["id"] || entry["name"] == "" {
		t.Errorf("expected entry to carry a non-empty name matching id, got %v", entry)
	}
}

func TestEngine_GoogAPIKeySchemeSubstitution(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "upstream-key" {
			t.Errorf("upstream got x-goog-api-key = %q", r.Header.Get("x-goog-api-key"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header forwarded: %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	engine, _ := newTestEngine(t, baseConfig(upstream.URL, 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-4"}`))
	req.Header.Set("x-goog-api-key", "secret")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}
