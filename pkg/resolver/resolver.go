// Package resolver implements the Model Resolver (Component D): for
// providers without an explicit model list, it discovers the upstream
// catalog lazily and caches it, and resolves a requested model name to the
// upstream-facing id a given provider should receive.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raikyou/uniapi/pkg/config"
	"github.com/raikyou/uniapi/pkg/providers"
	"github.com/raikyou/uniapi/pkg/routing"
)

// HTTPDoer is the subset of *providers.Pool the resolver needs to issue its
// discovery GET, kept as an interface so tests can fake it without standing
// up a real HTTP client pool.
type HTTPDoer interface {
	Send(ctx context.Context, method, url string, header http.Header, body io.Reader, deadline time.Duration) (*providers.Response, error)
}

// Resolver resolves requested model names against a provider's explicit
// list or its discovered catalog.
type Resolver struct {
	http     HTTPDoer
	registry *routing.Registry
}

// New returns a Resolver that issues discovery requests through http and
// caches results in registry.
func New(http HTTPDoer, registry *routing.Registry) *Resolver {
	return &Resolver{http: http, registry: registry}
}

// Resolve matches requestedModel against pc's explicit model list first
// (wildcards included); failing that, against the provider's cached
// discovered models (exact match only — discovery never returns patterns).
func (r *Resolver) Resolve(pc config.ProviderConfig, requestedModel string) (effectiveModel string, matched bool) {
	for _, e := range pc.Model {
		if e.MatchKey() == requestedModel {
			return e.EffectiveID(), true
		}
	}
	for _, e := range pc.Model {
		if e.IsWildcard() && globMatch(e.MatchKey(), requestedModel) {
			return requestedModel, true
		}
	}

	for _, id := range r.registry.Get(pc.Provider).DiscoveredModels() {
		if id == requestedModel {
			return id, true
		}
	}
	return "", false
}

// ResolveOrDiscover behaves like Resolve, but on a miss it triggers catalog
// discovery for pc once (ShouldDiscover claims the attempt so a burst of
// concurrent requests for an undiscovered provider issues a single GET, not
// one per request) and retries the match. A discovery failure leaves the
// cache empty and is reported as a plain miss, per Discover's contract.
func (r *Resolver) ResolveOrDiscover(ctx context.Context, pc config.ProviderConfig, requestedModel string, deadline time.Duration) (effectiveModel string, matched bool) {
	if effectiveModel, matched = r.Resolve(pc, requestedModel); matched {
		return effectiveModel, true
	}
	if !r.registry.Get(pc.Provider).ShouldDiscover() {
		return "", false
	}
	if err := r.Discover(ctx, pc, deadline); err != nil {
		return "", false
	}
	return r.Resolve(pc, requestedModel)
}

// globMatch supports the same two metacharacters as routing's matcher
// ('*' and '?'). Duplicated rather than exported from pkg/routing: it is a
// small pure function and exporting it would couple resolver to
// routing's internal package boundary for no shared state.
func globMatch(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if globMatch(pattern, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
			pattern, name = pattern[1:], name[1:]
		default:
			if len(name) == 0 || pattern[0] != name[0] {
				return false
			}
			pattern, name = pattern[1:], name[1:]
		}
	}
	return len(name) == 0
}

// Discover issues a GET to pc's models_endpoint (or the default /v1/models)
// using the provider's own credential, parses either an OpenAI-shaped
// {"data":[{"id":...}]} or a Gemini-shaped {"models":[{"name":...}]} payload,
// and caches the resulting id list. Failure is non-fatal: the cache is left
// untouched and the provider may still match via its explicit list.
func (r *Resolver) Discover(ctx context.Context, pc config.ProviderConfig, deadline time.Duration) error {
	endpoint := pc.ModelsEndpoint
	if endpoint == "" {
		endpoint = "/v1/models"
	}
	targetURL := strings.TrimRight(pc.BaseURL, "/") + endpoint

	header := http.Header{}
	header.Set("Authorization", "Bearer "+pc.APIKey)
	header.Set("X-API-Key", pc.APIKey)

	resp, err := r.http.Send(ctx, http.MethodGet, targetURL, header, nil, deadline)
	if err != nil {
		return fmt.Errorf("discover %s: %w", pc.Provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discover %s: upstream returned status %d", pc.Provider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("discover %s: reading response: %w", pc.Provider, err)
	}

	ids, err := parseCatalog(body)
	if err != nil {
		return fmt.Errorf("discover %s: %w", pc.Provider, err)
	}

	r.registry.Get(pc.Provider).SetDiscoveredModels(ids)
	return nil
}

type openAICatalog struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type geminiCatalog struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// parseCatalog accepts either shape the upstream might return; an OpenAI
// document with a non-empty "data" key wins if both would otherwise parse.
func parseCatalog(body []byte) ([]string, error) {
	var oai openAICatalog
	if err := json.Unmarshal(body, &oai); err == nil && len(oai.Data) > 0 {
		ids := make([]string, 0, len(oai.Data))
		for _, m := range oai.Data {
			if m.ID != "" {
				ids = append(ids, m.ID)
			}
		}
		return ids, nil
	}

	var gem geminiCatalog
	if err := json.Unmarshal(body, &gem); err == nil && len(gem.Models) > 0 {
		ids := make([]string, 0, len(gem.Models))
		for _, m := range gem.Models {
			ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
		}
		return ids, nil
	}

	return nil, fmt.Errorf("unrecognized model catalog shape")
}
