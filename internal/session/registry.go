package session

import "sync"

// Registry tracks the single live controller per guest. Only one
// session may be active for a guest at a time; finished controllers are
// replaced on the next entry.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Controller)}
}

// Get returns the guest's live controller, or nil.
func (r *Registry) Get(guestID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[guestID]
}

// Put registers the guest's controller, replacing any previous one.
func (r *Registry) Put(guestID string, c *Controller) {
	r.mu.Lock()
	r.sessions[guestID] = c
	r.mu.Unlock()
}

// Replace installs c only if the guest's slot still holds prev (which
// may be nil). It reports whether the swap happened, so concurrent
// entries racing for the same slot resolve to exactly one winner.
func (r *Registry) Replace(guestID string, prev, c *Controller) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[guestID] != prev {
		return false
	}
	r.sessions[guestID] = c
	return true
}

// Remove drops the guest's controller if it is still the given one.
func (r *Registry) Remove(guestID string, c *Controller) {
	r.mu.Lock()
	if r.sessions[guestID] == c {
		delete(r.sessions, guestID)
	}
	r.mu.Unlock()
}
