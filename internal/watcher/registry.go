package watcher

import "sync"

// Registry holds the recursive requests contributed by independent callers.
// Each Add returns an id; Remove with that id retracts exactly that entry,
// even when another caller added an equal request.
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
	nextID  uint64
}

type registryEntry struct {
	id  uint64
	req Request
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add stores a copy of req and returns its registration id.
func (r *Registry) Add(req Request) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.entries = append(r.entries, registryEntry{id: r.nextID, req: req.Clone()})
	return r.nextID
}

// Remove retracts the entry registered under id. It reports whether the entry
// was present.
func (r *Registry) Remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Requests returns a copy of every entry in insertion order, duplicates
// included.
func (r *Registry) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Request, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.req.Clone()
	}
	return out
}

// Folders returns the deduplicated snapshot pushed to the recursive watcher.
func (r *Registry) Folders() []Request {
	return Dedupe(r.Requests())
}

// Len returns the number of entries, duplicates included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
