package resilience

import "sync"

// BreakerSnapshot is a read-only view of one breaker's state.
type BreakerSnapshot struct {
	Endpoint string
	State    BreakerState
}

// Registry owns the per-process set of circuit breakers, keyed by
// upstream endpoint so failures on one upstream never open breakers for
// unrelated ones. It is injected into the components that need it, not
// kept as an ambient singleton.
type Registry struct {
	mu       sync.RWMutex
	cfg      BreakerConfig
	breakers map[string]*Breaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for an endpoint, creating it on first use.
func (r *Registry) Get(endpoint string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[endpoint]; ok {
		return b
	}
	b = NewBreaker(endpoint, r.cfg)
	r.breakers[endpoint] = b
	return b
}

// Snapshot returns the current state of every registered breaker.
func (r *Registry) Snapshot() []BreakerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]BreakerSnapshot, 0, len(r.breakers))
	for endpoint, b := range r.breakers {
		snaps = append(snaps, BreakerSnapshot{Endpoint: endpoint, State: b.State()})
	}
	return snaps
}

// States returns endpoint -> state name for the given endpoints. A nil
// filter returns every registered breaker.
func (r *Registry) States(endpoints []string) map[string]string {
	out := make(map[string]string)
	if endpoints == nil {
		for _, s := range r.Snapshot() {
			out[s.Endpoint] = s.State.String()
		}
		return out
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range endpoints {
		if b, ok := r.breakers[e]; ok {
			out[e] = b.State().String()
		}
	}
	return out
}
