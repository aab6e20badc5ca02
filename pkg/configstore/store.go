// Package configstore owns the gateway's live configuration snapshot: a
// lock-free-for-readers published Config, refreshed by polling the backing
// file's modification time every two seconds (Component A, "Config Store").
package configstore

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raikyou/uniapi/pkg/config"
)

// pollInterval is how often reloadIfChanged checks the backing file's
// modification time, per spec.md §3/§5.
const pollInterval = 2 * time.Second

// Snapshot is an immutable, published configuration document together with
// the file metadata reloadIfChanged used to decide whether to re-read it.
type Snapshot struct {
	Doc     *config.Config
	ModTime time.Time
}

// Invalidator is notified whenever a new snapshot is published, so that
// dependents (HTTP Client Pool, Provider Pool) can rebuild caches keyed off
// the old snapshot.
type Invalidator func(old, new *Snapshot)

// Store holds the current configuration snapshot and refreshes it from disk.
type Store struct {
	path   string
	logger *slog.Logger

	current atomic.Pointer[Snapshot]

	mu           sync.Mutex // serializes reloadIfChanged and write callers
	invalidators []Invalidator

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New loads the initial snapshot from path and returns a ready Store. The
// caller must call Start to begin the periodic reload poll.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	s.current.Store(&Snapshot{Doc: cfg, ModTime: info.ModTime()})
	return s, nil
}

// Snapshot returns the current immutable document. O(1), lock-free.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// OnInvalidate registers a callback invoked after every successful reload.
// Not safe to call concurrently with Start's poll loop; register callbacks
// during startup before calling Start.
func (s *Store) OnInvalidate(fn Invalidator) {
	s.invalidators = append(s.invalidators, fn)
}

// Start runs the periodic reload poll until ctx is canceled or Stop is
// called. Intended to run in its own goroutine.
func (s *Store) Start(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.reloadIfChanged()
		}
	}
}

// Stop halts the poll loop started by Start and waits for it to exit.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

// reloadIfChanged stats the backing file; if its modification time has
// advanced since the last published snapshot, it re-parses and validates
// the file, publishing a new snapshot only on success. On validation
// failure it logs and keeps the previous snapshot — a bad edit never takes
// the process down.
func (s *Store) reloadIfChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		s.logger.Warn("config reload: stat failed", "path", s.path, "error", err)
		return
	}

	old := s.current.Load()
	if !info.ModTime().After(old.ModTime) {
		return
	}

	cfg, err := config.LoadConfig(s.path)
	if err != nil {
		s.logger.Error("config reload: validation failed, keeping previous snapshot",
			"path", s.path, "error", err)
		return
	}

	next := &Snapshot{Doc: cfg, ModTime: info.ModTime()}
	s.current.Store(next)
	s.logger.Info("config reloaded", "path", s.path, "providers", len(cfg.Providers))

	for _, inv := range s.invalidators {
		inv(old, next)
	}
}

// Write validates doc, atomically persists it to the backing file, and
// immediately publishes it as the current snapshot (the next poll tick
// will simply observe the same modification time and no-op).
func (s *Store) Write(doc *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := config.Write(s.path, doc); err != nil {
		return err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}

	old := s.current.Load()
	next := &Snapshot{Doc: doc, ModTime: info.ModTime()}
	s.current.Store(next)

	for _, inv := range s.invalidators {
		inv(old, next)
	}
	return nil
}
