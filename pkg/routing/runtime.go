// Package routing implements the Provider Pool (Component C): eligibility
// filtering, priority-ordered failover candidate lists, and the mutable
// runtime state (cooldown, last error, connectivity test results, discovered
// models) tracked per configured provider.
package routing

import (
	"sync"
	"time"
)

// RuntimeState is the mutable state tracked per provider name, independent
// of the static config.ProviderConfig it was derived from. Config reloads
// replace the static config; RuntimeState survives reloads for providers
// whose name is unchanged.
type RuntimeState struct {
	mu sync.Mutex

	cooldownUntil      time.Time
	lastError          string
	lastTestLatencyMs  int64
	lastTestTime       time.Time
	discoveredModels   []string
	discoveryAttempted bool
}

// InCooldown reports whether the provider is currently skipped due to a
// recent failure.
func (s *RuntimeState) InCooldown(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.cooldownUntil)
}

// CooldownUntil returns the time the provider's cooldown expires (or
// expired), or the zero value if no cooldown has been set since the last
// success or reset.
func (s *RuntimeState) CooldownUntil() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldownUntil
}

// LastError returns the most recently recorded failure reason.
func (s *RuntimeState) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// MarkFailure records a failure and puts the provider into cooldown for the
// given duration. A zero duration records the failure without starting a
// cooldown window (preferences.cooldown_period == 0 disables cooldown).
func (s *RuntimeState) MarkFailure(now time.Time, reason string, cooldown time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = reason
	if cooldown > 0 {
		s.cooldownUntil = now.Add(cooldown)
	}
}

// MarkSuccess clears any active cooldown and the last recorded error.
func (s *RuntimeState) MarkSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldownUntil = time.Time{}
	s.lastError = ""
}

// Reset clears cooldown and error state unconditionally, used by the admin
// "reset provider" operation.
func (s *RuntimeState) Reset() {
	s.MarkSuccess()
}

// RecordTest stores the outcome of an on-demand connectivity test.
func (s *RuntimeState) RecordTest(at time.Time, latency time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTestTime = at
	s.lastTestLatencyMs = latency.Milliseconds()
	if err != nil {
		s.lastError = err.Error()
	}
}

// SetDiscoveredModels stores the provider's most recent catalog discovery
// result. Called by the Model Resolver; read by catalog aggregation.
func (s *RuntimeState) SetDiscoveredModels(models []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discoveredModels = models
}

// DiscoveredModels returns the cached catalog discovery result, if any.
func (s *RuntimeState) DiscoveredModels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.discoveredModels))
	copy(out, s.discoveredModels)
	return out
}

// ShouldDiscover reports whether this provider's catalog has never been
// discovered (or was reset by a config change) and, if so, claims the
// attempt so concurrent callers for the same request wave don't all issue
// discovery requests.
func (s *RuntimeState) ShouldDiscover() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discoveryAttempted {
		return false
	}
	s.discoveryAttempted = true
	return true
}

// ResetDiscovery clears the cached catalog and the attempted flag, called
// when the owning provider's configuration entry changes so the next
// request needing it triggers a fresh discovery.
func (s *RuntimeState) ResetDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discoveredModels = nil
	s.discoveryAttempted = false
}

// Snapshot is a point-in-time, lock-free copy of RuntimeState for admin
// reporting.
type Snapshot struct {
	CooldownUntil     time.Time
	LastError         string
	LastTestLatencyMs int64
	LastTestTime      time.Time
	DiscoveredModels  []string
}

// Snapshot copies the current state out from under the lock.
func (s *RuntimeState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	models := make([]string, len(s.discoveredModels))
	copy(models, s.discoveredModels)
	return Snapshot{
		CooldownUntil:     s.cooldownUntil,
		LastError:         s.lastError,
		LastTestLatencyMs: s.lastTestLatencyMs,
		LastTestTime:      s.lastTestTime,
		DiscoveredModels:  models,
	}
}

// Registry keys a RuntimeState per provider name, creating entries lazily so
// a config reload that adds a provider needs no explicit registration step.
type Registry struct {
	mu    sync.Mutex
	byKey map[string]*RuntimeState
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*RuntimeState)}
}

// Get returns the RuntimeState for name, creating it on first access.
func (r *Registry) Get(name string) *RuntimeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byKey[name]
	if !ok {
		s = &RuntimeState{}
		r.byKey[name] = s
	}
	return s
}

// Prune removes runtime state for provider names no longer present in the
// current config, called after each reload so stale entries don't leak.
func (r *Registry) Prune(keep map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.byKey {
		if _, ok := keep[name]; !ok {
			delete(r.byKey, name)
		}
	}
}
