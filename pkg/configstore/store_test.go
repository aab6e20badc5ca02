package configstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, apiKey string, providerKeys ...string) {
	t.Helper()
	content := "api_key: " + apiKey + "\nproviders:\n"
	for _, name := range providerKeys {
		content += "  - provider: " + name + "\n    base_url: https://" + name + ".example.com\n    api_key: key-" + name + "\n    model: [\"m\"]\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestStore_SnapshotReflectsInitialLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "secret", "a")

	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snap := s.Snapshot()
	if snap.Doc.APIKey != "secret" {
		t.Errorf("api_key = %q, want secret", snap.Doc.APIKey)
	}
}

func TestStore_ReloadIfChangedPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "secret", "a")

	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Ensure the new mtime is observably later on filesystems with coarse
	// mtime resolution.
	time.Sleep(10 * time.Millisecond)
	writeConfig(t, path, "secret", "a", "b")

	s.reloadIfChanged()

	snap := s.Snapshot()
	if len(snap.Doc.Providers) != 2 {
		t.Fatalf("expected 2 providers after reload, got %d", len(snap.Doc.Providers))
	}
}

func TestStore_ReloadIfChanged_ValidationFailureKeepsOld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "secret", "a")

	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := s.Snapshot()

	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte("api_key: \"\"\nproviders: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s.reloadIfChanged()

	after := s.Snapshot()
	if after != before {
		t.Error("expected snapshot to be unchanged after a validation failure")
	}
}

func TestStore_InvalidatorsCalledOnReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "secret", "a")

	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	called := false
	s.OnInvalidate(func(old, new *Snapshot) {
		called = true
	})

	time.Sleep(10 * time.Millisecond)
	writeConfig(t, path, "secret", "a", "b")
	s.reloadIfChanged()

	if !called {
		t.Error("expected invalidator callback to run after reload")
	}
}

func TestStore_StartStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "secret", "a")

	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not exit after context cancellation")
	}
}

func TestStore_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "secret", "a")

	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	doc := s.Snapshot().Doc
	doc.APIKey = "updated"

	if err := s.Write(doc); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if s.Snapshot().Doc.APIKey != "updated" {
		t.Error("expected Write to immediately publish the new snapshot")
	}
}
