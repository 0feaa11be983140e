// Package provider defines the adapter contract for travel offer sources and
// the registry the aggregator dispatches through.
package provider

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/travelsearch/internal/model"
)

// ErrUnavailable is returned by an adapter asked to search while it has no
// credentials or data to serve from.
var ErrUnavailable = eris.New("provider unavailable")

// Adapter is a leaf source of raw offers for one or more verticals.
type Adapter interface {
	// Name returns the provider identifier used in offers, cache keys and
	// trust configuration.
	Name() string
	// SupportedVerticals returns the verticals this adapter can search.
	SupportedVerticals() []model.Vertical
	// Search fetches raw offers. Implementations never retry on their own;
	// the caller bounds the call with a deadline.
	Search(ctx context.Context, vertical model.Vertical, params model.SearchParams) ([]model.RawOffer, error)
	// Available is a cheap health signal such as "credentials configured".
	Available() bool
}

// Supports reports whether a can search vertical v.
func Supports(a Adapter, v model.Vertical) bool {
	return slices.Contains(a.SupportedVerticals(), v)
}

// Registry manages the set of adapters a search can fan out to.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter, replacing any adapter with the same name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Unregister removes an adapter by name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[name]; !ok {
		return false
	}
	delete(r.adapters, name)
	return true
}

// Get returns an adapter by name, or nil if not found.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns all registered adapter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adapters returns all registered adapters sorted by name.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Match returns the available adapters that support vertical. A non-empty
// filter further restricts the result to the named providers; filter names
// are trimmed and compared case-insensitively, matching cache.Key. The
// result is sorted by name.
func (r *Registry) Match(vertical model.Vertical, filter []string) []Adapter {
	var out []Adapter
	for _, a := range r.Adapters() {
		if len(filter) > 0 && !inFilter(filter, a.Name()) {
			continue
		}
		if !Supports(a, vertical) || !a.Available() {
			continue
		}
		out = append(out, a)
	}
	return out
}

func inFilter(filter []string, name string) bool {
	return slices.ContainsFunc(filter, func(f string) bool {
		return strings.EqualFold(strings.TrimSpace(f), name)
	})
}
