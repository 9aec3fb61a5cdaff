package llm

import (
	"sort"
	"sync"
)

// ProviderRegistry is a thread-safe named collection of initialized
// providers plus the designated default and the ordered fallback list.
// The manager is the only writer; provider names are unique keys.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	defaultP  string
	fallbacks []string
}

// NewProviderRegistry creates an empty ProviderRegistry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Provider)}
}

// Register adds a provider under the given name, replacing any previous
// entry with the same name.
func (r *ProviderRegistry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *ProviderRegistry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// SetDefault records the default provider name. The name is taken verbatim:
// whether it resolves to a registered provider is only discovered at
// dispatch time, not here.
func (r *ProviderRegistry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultP = name
}

// DefaultName returns the configured default provider name, which may be
// empty or unregistered.
func (r *ProviderRegistry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultP
}

// SetFallbacks records the ordered fallback provider names. Names may
// reference unregistered providers; dispatch skips those.
func (r *ProviderRegistry) SetFallbacks(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append([]string(nil), names...)
}

// Fallbacks returns a copy of the ordered fallback names.
func (r *ProviderRegistry) Fallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallbacks...)
}

// List returns the sorted names of all registered providers.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the name -> provider mapping.
func (r *ProviderRegistry) All() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		out[name] = p
	}
	return out
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Clear removes every entry so no stale provider reference can be reused
// after shutdown.
func (r *ProviderRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[string]Provider)
	r.defaultP = ""
	r.fallbacks = nil
}
