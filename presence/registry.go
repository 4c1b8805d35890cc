// Package presence tracks which users currently hold live
// connections. It is process-local in-memory state: a restart forgets
// all presence, and clients re-register on reconnect.
package presence

import (
	"sync"

	"veilchat/contract"
	"veilchat/domain"
)

// Registry maps a user id to the set of live connections bound to it.
// A user is online iff its set is non-empty; the entry is created
// lazily on the first connection and deleted when the set empties.
type Registry struct {
	mu    sync.RWMutex
	users map[domain.UserID]map[string]contract.Connection // user -> handle -> connection
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[domain.UserID]map[string]contract.Connection)}
}

// Add registers a live connection under its owning user, creating the
// set on first use. Adding the same handle twice is a no-op, so a
// handle is present at most once.
func (r *Registry) Add(userID domain.UserID, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]contract.Connection)
		r.users[userID] = set
	}
	set[conn.Handle] = conn
}

// Remove drops a connection handle from a user's set. Removing an
// absent handle or an absent user is a no-op. When the set empties
// the user entry is removed entirely, so no empty sets linger.
func (r *Registry) Remove(userID domain.UserID, handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return
	}
	delete(set, handle)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// ConnectionsOf returns the live connections bound to a user. The
// returned slice is a snapshot; mutating the registry afterwards does
// not affect it.
func (r *Registry) ConnectionsOf(userID domain.UserID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.users[userID]
	if !ok {
		return nil
	}
	conns := make([]contract.Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}
