package breaker

import (
	"sync"
	"time"
)

// Registry hands out one named Breaker per upstream, creating it lazily on
// first lookup. Canonical names: cars_service, rental_service, payment_service.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry constructs an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for name, constructing it with the given parameters
// on first call. Subsequent calls ignore failureThreshold/openTimeout and
// return the existing instance.
func (r *Registry) Get(name string, failureThreshold int, openTimeout time.Duration) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, failureThreshold, openTimeout)
	r.breakers[name] = b
	return b
}

// Snapshot returns every breaker currently registered, keyed by name, as a
// copy of the registry's map.
func (r *Registry) Snapshot() map[string]*Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*Breaker, len(r.breakers))
	for k, v := range r.breakers {
		out[k] = v
	}
	return out
}
