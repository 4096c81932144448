package mcp

import (
	"sort"
	"sync"
)

// SessionRegistry maps tenant IDs to the MCP sessions watching them.
// Populated by procdoc.watch; a session may watch several tenants.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{} // tenantID → sessionIDs
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]map[string]struct{})}
}

// Register subscribes a session to a tenant's events. Registering twice is a no-op.
func (r *SessionRegistry) Register(tenantID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[tenantID]
	if !ok {
		set = make(map[string]struct{})
		r.sessions[tenantID] = set
	}
	set[sessionID] = struct{}{}
}

// Unregister stops a session watching one tenant.
func (r *SessionRegistry) Unregister(tenantID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(tenantID, sessionID)
}

// SessionsFor returns the sessions watching the tenant, sorted.
func (r *SessionRegistry) SessionsFor(tenantID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sessions[tenantID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	sort.Strings(out)
	return out
}

// Remove deletes every tenant mapping for the given session ID.
// Called when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tid := range r.sessions {
		r.drop(tid, sessionID)
	}
}

func (r *SessionRegistry) drop(tenantID, sessionID string) {
	set, ok := r.sessions[tenantID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.sessions, tenantID)
	}
}
