// Package server implements the role servers: a TCP/TLS listener bound
// to a declared role set, a per-connection read loop dispatching into
// internal/protocol, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/protocol"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/session"
)

// Tracker maps a live session to the network connection carrying it, so
// a handler running on one connection can push a node-initiated request
// (IncomingCallNotification, AppServiceReceiveMessageNotification) to a
// different connection. It implements protocol.Notifier. The identity
// registry (internal/registry) tracks identity-to-session bindings; this
// tracker is the complementary session-to-connection binding, owned by
// internal/server because only this package knows about net.Conn.
type Tracker struct {
	mu        sync.RWMutex
	bySession map[*session.Session]*Connection
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{bySession: make(map[*session.Session]*Connection)}
}

func (t *Tracker) register(sess *session.Session, c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bySession[sess] = c
}

func (t *Tracker) unregister(sess *session.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bySession, sess)
}

// Notify implements protocol.Notifier by writing a Request frame on
// sess's connection and recording it as a pending node-originated
// request awaiting correlation. token is the relay token the
// notification concerns, if any, stashed on the pending-request entry
// so a later reply can be matched back to its relay.
func (t *Tracker) Notify(ctx context.Context, sess *session.Session, msgType protocol.MessageType, token string, body []byte) error {
	t.mu.RLock()
	c, ok := t.bySession[sess]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("server: no live connection for session")
	}
	return c.sendRequest(msgType, token, body)
}

// Respond writes a Response frame directly on sess's connection, used to
// deliver a deferred reply once the event it was
// waiting on — a callee's answer, a relay timeout — finally resolves it.
func (t *Tracker) Respond(ctx context.Context, sess *session.Session, resp *protocol.Response) error {
	t.mu.RLock()
	c, ok := t.bySession[sess]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("server: no live connection for session")
	}
	return c.writeResponse(resp)
}

// RespondNotAvailable implements relay.CallerResponder: it answers r's
// caller with NotAvailable, the outcome for a relay
// whose callee never responded to its IncomingCallNotification.
func (t *Tracker) RespondNotAvailable(ctx context.Context, r *relay.Relay) error {
	return t.Respond(ctx, r.Caller, &protocol.Response{MessageID: r.CallerMessageID, Status: model.StatusNotAvailable})
}
