package locks

import (
	"sync"
	"time"
)

// Registry hands out one mutex per key so that a user's quota
// check-then-persist sequence runs serialized even against rapid
// duplicate requests. Entries are refcounted and reaped by Sweep once
// idle.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	refs    int
	lastUse time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Acquire locks the mutex for key, creating it on first use, and
// returns the release func.
func (r *Registry) Acquire(key string) func() {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		r.mu.Lock()
		e.refs--
		e.lastUse = time.Now()
		r.mu.Unlock()
	}
}

// Sweep removes entries that are unheld and idle for longer than ttl,
// returning how many were dropped.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for key, e := range r.entries {
		if e.refs == 0 && e.lastUse.Before(cutoff) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
