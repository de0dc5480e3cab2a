// Package registry implements the global client registry: a
// connection-keyed table and an identity-keyed table enforcing at most
// one Authenticated session per IdentityId, with second-check-in
// displacement.
package registry

import (
	"net"
	"sync"

	"github.com/marmos91/idhost/internal/session"
)

// Registry tracks every live session by its connection and, for
// Authenticated sessions, by identity id.
type Registry struct {
	mu           sync.RWMutex
	byConnection map[net.Conn]*session.Session
	byIdentityID map[string]*session.Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byConnection: make(map[net.Conn]*session.Session),
		byIdentityID: make(map[string]*session.Session),
	}
}

// Add registers a newly accepted session against its connection.
func (r *Registry) Add(conn net.Conn, sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConnection[conn] = sess
}

// Remove drops conn's session from the connection index and, if it was
// the identity-indexed entry for its peer identity, from that index too.
func (r *Registry) Remove(conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConnection[conn]
	if !ok {
		return
	}
	delete(r.byConnection, conn)

	if sess.PeerIdentityID != "" {
		if current, ok := r.byIdentityID[sess.PeerIdentityID]; ok && current == sess {
			delete(r.byIdentityID, sess.PeerIdentityID)
		}
	}
}

// CheckIn binds sess as the sole Authenticated session for identityID.
// If another session already holds that slot, it is displaced: its
// force-disconnect flag is set so its next read loop iteration closes
// it, and byIdentityID is repointed at sess.
func (r *Registry) CheckIn(identityID string, sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if displaced, ok := r.byIdentityID[identityID]; ok && displaced != sess {
		displaced.RequestDisconnect()
	}
	r.byIdentityID[identityID] = sess
}

// Lookup returns the Authenticated session for identityID, if any.
func (r *Registry) Lookup(identityID string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byIdentityID[identityID]
	return sess, ok
}

// BySession returns the session bound to conn, if any.
func (r *Registry) BySession(conn net.Conn) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byConnection[conn]
	return sess, ok
}

// Count returns the number of tracked connections and identity
// check-ins, for admin stats reporting.
func (r *Registry) Count() (connections, identities int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConnection), len(r.byIdentityID)
}
