package providers

import (
	"context"
	"sort"
	"sync"
)

// Registry holds the constructed adapters. It is built once at startup
// and injected into the routing service; there are no package-level
// adapter globals.
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under an id.
func (r *Registry) Register(id string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[id] = provider
}

// Get retrieves a provider by id, nil when absent.
func (r *Registry) Get(id string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// List returns all registered ids, sorted for deterministic iteration.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Available returns the ids of providers whose credentials resolved,
// in sorted order.
func (r *Registry) Available(ctx context.Context) []string {
	ids := r.List()
	available := make([]string, 0, len(ids))
	for _, id := range ids {
		if p := r.Get(id); p != nil && p.IsAvailable(ctx) {
			available = append(available, id)
		}
	}
	return available
}

// Descriptors returns every provider's descriptor keyed by id, with
// Available populated.
func (r *Registry) Descriptors(ctx context.Context) map[string]Descriptor {
	ids := r.List()
	out := make(map[string]Descriptor, len(ids))
	for _, id := range ids {
		p := r.Get(id)
		if p == nil {
			continue
		}
		d := p.Descriptor()
		d.Available = p.IsAvailable(ctx)
		out[id] = d
	}
	return out
}

// Has checks whether an id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[id]
	return exists
}

// Unregister removes a provider.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, id)
}
