package monitor

import (
	"sort"
	"sync"
)

// Entry pairs a registered Monitor with the key it is stored under.
type Entry struct {
	Key     string
	Monitor *Monitor
}

// Registry is a concurrency-safe key to Monitor store. At most one Monitor
// is held per key; AddOrUpdate replaces wholesale, discarding the previous
// Monitor's gating history.
type Registry struct {
	mu       sync.RWMutex
	monitors map[string]*Monitor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{monitors: make(map[string]*Monitor)}
}

// AddOrUpdate stores m under key. A nil monitor is ignored and reports false.
func (r *Registry) AddOrUpdate(key string, m *Monitor) bool {
	if m == nil {
		return false
	}
	r.mu.Lock()
	r.monitors[key] = m
	r.mu.Unlock()
	return true
}

// Remove deletes key and reports whether it was present.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[key]; !ok {
		return false
	}
	delete(r.monitors, key)
	return true
}

// Contains reports whether key is registered.
func (r *Registry) Contains(key string) bool {
	r.mu.RLock()
	_, ok := r.monitors[key]
	r.mu.RUnlock()
	return ok
}

// Get returns the Monitor stored under key.
func (r *Registry) Get(key string) (*Monitor, bool) {
	r.mu.RLock()
	m, ok := r.monitors[key]
	r.mu.RUnlock()
	return m, ok
}

// Len returns the number of registered monitors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.monitors)
}

// Snapshot returns a point-in-time copy of the registered monitors ordered
// by key. Later registry mutations are not reflected in the returned slice.
func (r *Registry) Snapshot() []*Monitor {
	entries := r.Entries()
	out := make([]*Monitor, len(entries))
	for i, e := range entries {
		out[i] = e.Monitor
	}
	return out
}

// Entries is like Snapshot but keeps each monitor's key.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.monitors))
	for k, m := range r.monitors {
		out = append(out, Entry{Key: k, Monitor: m})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
