package routing

import (
	"math/rand"
	"sort"
	"time"

	"github.com/raikyou/uniapi/pkg/config"
)

// Handle pairs a provider's static config with its runtime state, what the
// Proxy Engine's failover loop iterates over.
type Handle struct {
	Config  config.ProviderConfig
	Runtime *RuntimeState
}

// Pool is the Provider Pool: given the live config snapshot and the runtime
// registry, it produces failover candidate lists and aggregates the model
// catalog.
type Pool struct {
	registry *Registry
}

// NewPool returns a Pool backed by the given runtime registry.
func NewPool(registry *Registry) *Pool {
	return &Pool{registry: registry}
}

// Candidates returns the providers eligible to serve requestedModel, ordered
// by descending priority group, with a uniform random shuffle within each
// priority group (per spec.md: no fixed ordering among equal-priority
// providers, so no single provider is consistently preferred). Providers
// that are disabled, lack a matching model entry, or are in cooldown are
// excluded. Each candidate's EffectiveModel carries the upstream model id
// chosen for the provider.
//
// discoveryLookup is consulted for providers configured with an empty model
// list: it returns the Model Resolver's discovery match for that provider,
// if any (the Proxy Engine's lookup runs discovery on a first miss). Passing nil skips discovery-based eligibility
// entirely (every provider is treated as explicit-list-only).
func (p *Pool) Candidates(cfg *config.Config, now time.Time, requestedModel string, discoveryLookup func(providerName, model string) (effective string, ok bool)) []ResolvedCandidate {
	type group struct {
		priority   int
		candidates []ResolvedCandidate
	}
	groups := make(map[int]*group)

	for _, pc := range cfg.Providers {
		if !pc.IsEnabled() {
			continue
		}

		var effective string
		matched := false
		if len(pc.Model) == 0 {
			if discoveryLookup != nil {
				effective, matched = discoveryLookup(pc.Provider, requestedModel)
			}
		} else {
			entry, ok := matchModel(pc.Model, requestedModel)
			if ok {
				matched = true
				if entry.IsAlias() {
					effective = entry.EffectiveID()
				} else {
					// A wildcard (or exact bare-pattern) match forwards the
					// caller's own model name untouched; EffectiveID() would
					// return the pattern text itself, e.g. "gpt-4*".
					effective = requestedModel
				}
			}
		}
		if !matched {
			continue
		}

		rt := p.registry.Get(pc.Provider)
		if rt.InCooldown(now) {
			continue
		}
		g, ok := groups[pc.Priority]
		if !ok {
			g = &group{priority: pc.Priority}
			groups[pc.Priority] = g
		}
		g.candidates = append(g.candidates, ResolvedCandidate{
			Handle:         Handle{Config: pc, Runtime: rt},
			EffectiveModel: effective,
		})
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].priority > ordered[j].priority
	})

	var out []ResolvedCandidate
	for _, g := range ordered {
		rand.Shuffle(len(g.candidates), func(i, j int) {
			g.candidates[i], g.candidates[j] = g.candidates[j], g.candidates[i]
		})
		out = append(out, g.candidates...)
	}
	return out
}

// ResolvedCandidate is one failover candidate: the provider handle plus the
// upstream model id the requested model resolved to for that provider.
type ResolvedCandidate struct {
	Handle         Handle
	EffectiveModel string
}

// matchModel finds the first model entry on the provider whose match key
// matches requested, preferring an exact (non-wildcard) match over a
// wildcard one so a provider that lists both "gpt-4" and "gpt-4*" resolves
// the exact name precisely.
func matchModel(entries []config.ModelEntry, requested string) (config.ModelEntry, bool) {
	var wildcardMatch config.ModelEntry
	haveWildcard := false

	for _, e := range entries {
		key := e.MatchKey()
		if key == requested {
			return e, true
		}
		if !haveWildcard && matchPattern(key, requested) {
			wildcardMatch = e
			haveWildcard = true
		}
	}
	if haveWildcard {
		return wildcardMatch, true
	}
	return config.ModelEntry{}, false
}

// MarkSuccess records a successful attempt against the given provider.
func (p *Pool) MarkSuccess(providerName string) {
	p.registry.Get(providerName).MarkSuccess()
}

// MarkFailure records a failed attempt and starts a cooldown window, unless
// cooldown is zero (disabled).
func (p *Pool) MarkFailure(providerName, reason string, now time.Time, cooldown time.Duration) {
	p.registry.Get(providerName).MarkFailure(now, reason, cooldown)
}

// Reset clears cooldown/error state for a provider, used by the admin
// "reset provider" operation.
func (p *Pool) Reset(providerName string) {
	p.registry.Get(providerName).Reset()
}

// Catalog aggregates the non-wildcard model entries of every enabled
// provider (explicit config entries plus anything the Model Resolver has
// discovered) into the caller-visible catalog list, with duplicates
// suppressed by upstream id so the same underlying model configured twice
// (directly, or via an alias pointing at it) is listed once. Wildcard-only
// entries are excluded since they don't name a concrete model id.
func (p *Pool) Catalog(cfg *config.Config) []string {
	seenUpstream := make(map[string]struct{})
	var out []string

	for _, pc := range cfg.Providers {
		if !pc.IsEnabled() {
			continue
		}
		for _, e := range pc.Model {
			if e.IsWildcard() {
				continue
			}
			upstream := e.EffectiveID()
			if _, ok := seenUpstream[upstream]; ok {
				continue
			}
			seenUpstream[upstream] = struct{}{}
			out = append(out, e.MatchKey())
		}
		if len(pc.Model) == 0 {
			for _, id := range p.registry.Get(pc.Provider).DiscoveredModels() {
				if _, ok := seenUpstream[id]; ok {
					continue
				}
				seenUpstream[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}
