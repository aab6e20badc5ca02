package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raikyou/uniapi/pkg/configstore"
	"github.com/raikyou/uniapi/pkg/proxy"
	"github.com/raikyou/uniapi/pkg/requestlog"
	"github.com/raikyou/uniapi/pkg/routing"
)

func writeConfig(t *testing.T, path, apiKey string) {
	t.Helper()
	content := "api_key: " + apiKey + "\nproviders:\n" +
		"  - provider: a\n    base_url: https://a.example.com\n    api_key: key-a\n    model: [\"m\"]\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "secret")

	store, err := configstore.New(path, nil)
	if err != nil {
		t.Fatalf("configstore.New: %v", err)
	}

	registry := routing.NewRegistry()
	pool := routing.NewPool(registry)
	log := requestlog.New(10, nil, nil)

	return New(store, pool, registry, log)
}

func TestGetConfig_RedactsCredentials(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc["api_key"] != redacted {
		t.Errorf("api_key = %v, want redacted", doc["api_key"])
	}
}

func TestAdminRoutes_RejectMissingCredential(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestResetProvider_ClearsCooldown(t *testing.T) {
	h := newTestHandler(t)
	h.Pool.MarkFailure("a", "boom", time.Now(), time.Minute)

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodPost, "/admin/providers/a/reset", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if h.Registry.Get("a").InCooldown(time.Now()) {
		t.Error("provider still in cooldown after reset")
	}
}

func TestGetProviders_ReportsCooldownState(t *testing.T) {
	h := newTestHandler(t)
	h.Pool.MarkFailure("a", "boom", time.Now(), time.Minute)

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/admin/providers", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var out []providerStatus
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 1 || !out[0].InCooldown || out[0].LastError != "boom" {
		t.Fatalf("unexpected provider status: %+v", out)
	}
}

func TestGetLogs_ReturnsRingSnapshot(t *testing.T) {
	h := newTestHandler(t)
	h.Log.Record(proxy.Outcome{RequestID: "req-1", Provider: "a"})

	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/admin/logs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var out []requestlog.Record
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 1 || out[0].RequestID != "req-1" {
		t.Fatalf("unexpected log snapshot: %+v", out)
	}
}
