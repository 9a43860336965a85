package social

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps platforms to adapters. It is built once at startup and
// passed to whatever needs adapter lookup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Platform]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: map[Platform]Adapter{}}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter under its own platform identifier.
func (r *Registry) Register(adapter Adapter) {
	if adapter == nil {
		return
	}
	r.RegisterAs(adapter.Platform(), adapter)
}

// RegisterAs adds an adapter under platform, replacing any previous one.
func (r *Registry) RegisterAs(platform Platform, adapter Adapter) {
	if adapter == nil || platform == "" {
		return
	}
	r.mu.Lock()
	r.adapters[platform] = adapter
	r.mu.Unlock()
}

// GetAdapter returns the adapter for platform.
func (r *Registry) GetAdapter(platform Platform) (Adapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[platform]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	names := make([]string, 0)
	for _, p := range r.GetAvailablePlatforms() {
		names = append(names, string(p))
	}

	return nil, fmt.Errorf("%w: adapter for platform %q not registered, available: [%s]",
		ErrAdapterNotRegistered, platform, strings.Join(names, ", "))
}

// HasAdapter reports whether platform is registered.
func (r *Registry) HasAdapter(platform Platform) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[platform]
	return ok
}

// GetAvailablePlatforms returns the registered platforms sorted by name.
func (r *Registry) GetAvailablePlatforms() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Unregister removes platform.
func (r *Registry) Unregister(platform Platform) {
	r.mu.Lock()
	delete(r.adapters, platform)
	r.mu.Unlock()
}

// Clear removes every adapter.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.adapters = map[Platform]Adapter{}
	r.mu.Unlock()
}
