// Package relay implements the application-service relay manager: a
// callee-notification handshake that produces a pair of 16-byte tokens
// mediating a bidirectional message stream between a caller and callee
// session, tracked in a central token-keyed table.
package relay

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/idhost/internal/cryptoutil"
	"github.com/marmos91/idhost/internal/metrics"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/session"
)

// State is a relay's lifecycle position.
type State int

const (
	StateNotificationSent State = iota
	StateAccepted
	StateOpen
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateNotificationSent:
		return "notification_sent"
	case StateAccepted:
		return "accepted"
	case StateOpen:
		return "open"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned when a token does not map to a live relay.
	ErrNotFound = errors.New("relay: token not found")

	// ErrBadState is returned when an operation is attempted from a
	// state that does not permit it.
	ErrBadState = errors.New("relay: operation invalid in current state")
)

// Relay is a single caller/callee pairing, primary-keyed by CallerToken
// and secondary-keyed by CalleeToken.
type Relay struct {
	CallerToken string
	CalleeToken string
	ServiceName string

	Caller *session.Session
	Callee *session.Session

	// CallerMessageID is the message id of the caller's original
	// CallIdentityAppService request, recorded so the deferred final
	// response (Ok+token on accept, Rejected on decline, NotAvailable
	// on timeout/delivery failure) can be addressed back to it once the
	// callee's reply arrives.
	CallerMessageID uint32

	mu          sync.Mutex
	state       State
	stateSince  time.Time
	lastTraffic time.Time
}

// CallerResponder sends the deferred response to a relay's caller,
// implemented by internal/server's Tracker so this package never has to
// import the connection layer. Used by SweepExpired's callee-timeout
// path, the only case where the final caller response is triggered by
// the passage of time rather than by a reply arriving on a connection.
type CallerResponder interface {
	RespondNotAvailable(ctx context.Context, r *Relay) error
}

// State returns the relay's current lifecycle state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Relay) setState(s State) {
	r.state = s
	r.stateSince = time.Now()
}

// Touch records traffic on the relay, resetting its idle-expiry clock.
func (r *Relay) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastTraffic = time.Now()
}

func (r *Relay) idleSince() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastTraffic)
}

func (r *Relay) stateDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.stateSince)
}

// newToken generates a cryptographically random 16-byte relay token,
// hex-encoded.
func newToken() (string, error) {
	buf, err := cryptoutil.NewToken()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// Manager is the central relay table: a global lock guards table
// membership (create/destroy), while each Relay's own mutex guards its
// state transitions.
type Manager struct {
	mu       sync.Mutex
	byToken  map[string]*Relay
	byCaller map[*session.Session][]*Relay

	responder CallerResponder
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		byToken:  make(map[string]*Relay),
		byCaller: make(map[*session.Session][]*Relay),
	}
}

// SetResponder wires the CallerResponder SweepExpired uses to answer a
// caller whose callee never responded. Optional: a Manager with no
// responder still destroys timed-out relays, it just can't notify the
// caller (e.g. in tests that don't exercise the full server stack).
func (m *Manager) SetResponder(r CallerResponder) {
	m.responder = r
}

// Create allocates two distinct tokens and a new Relay in
// NotificationSent state, owned by caller and addressed to callee over
// serviceName. callerMessageID is the caller's original request id,
// stashed so the eventual deferred response can be addressed to it.
func (m *Manager) Create(caller, callee *session.Session, serviceName string, callerMessageID uint32) (*Relay, error) {
	callerToken, err := newToken()
	if err != nil {
		return nil, err
	}
	calleeToken, err := newToken()
	if err != nil {
		return nil, err
	}

	r := &Relay{
		CallerToken:     callerToken,
		CalleeToken:     calleeToken,
		ServiceName:     serviceName,
		Caller:          caller,
		Callee:          callee,
		CallerMessageID: callerMessageID,
		lastTraffic:     time.Now(),
	}
	r.setState(StateNotificationSent)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken[callerToken] = r
	m.byToken[calleeToken] = r
	m.byCaller[caller] = append(m.byCaller[caller], r)
	metrics.RecordRelayCreated()
	return r, nil
}

// Lookup returns the relay addressed by token, whether it is the
// caller- or callee-side token.
func (m *Manager) Lookup(token string) (*Relay, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byToken[token]
	return r, ok
}

// Accept transitions r from NotificationSent to Accepted on the
// callee's Ok response, then immediately to Open: once accepted a
// relay has nothing left to negotiate.
func (m *Manager) Accept(r *Relay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateNotificationSent {
		return ErrBadState
	}
	r.setState(StateAccepted)
	r.setState(StateOpen)
	return nil
}

// Destroy removes r from the table under both its tokens and marks it
// Destroyed. A destroyed relay's tokens become unreachable from
// Lookup.
func (m *Manager) Destroy(r *Relay) {
	m.destroy(r, "closed")
}

func (m *Manager) destroy(r *Relay, reason string) {
	r.mu.Lock()
	alreadyDestroyed := r.state == StateDestroyed
	r.setState(StateDestroyed)
	r.mu.Unlock()
	if !alreadyDestroyed {
		metrics.RecordRelayDestroyed(reason)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byToken, r.CallerToken)
	delete(m.byToken, r.CalleeToken)
	if list := m.byCaller[r.Caller]; list != nil {
		filtered := list[:0]
		for _, existing := range list {
			if existing != r {
				filtered = append(filtered, existing)
			}
		}
		if len(filtered) == 0 {
			delete(m.byCaller, r.Caller)
		} else {
			m.byCaller[r.Caller] = filtered
		}
	}
}

// DestroyBySession destroys every relay owned or joined by sess, used
// when its connection disappears mid-conversation.
func (m *Manager) DestroyBySession(sess *session.Session) {
	m.mu.Lock()
	var owned []*Relay
	for _, r := range m.byToken {
		if r.Caller == sess || r.Callee == sess {
			owned = append(owned, r)
		}
	}
	m.mu.Unlock()

	for _, r := range owned {
		m.Destroy(r)
	}
}

// Count returns the number of distinct live relays, for operator
// reporting (internal/adminapi's /stats endpoint).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[*Relay]struct{}, len(m.byToken))
	for _, r := range m.byToken {
		seen[r] = struct{}{}
	}
	return len(seen)
}

// SweepExpired destroys every relay idle for more than
// model.RelayIdleTimeout or still NotificationSent past
// model.RelayCalleeTimeout.
func (m *Manager) SweepExpired(ctx context.Context) int {
	m.mu.Lock()
	var candidates []*Relay
	seen := make(map[*Relay]struct{})
	for _, r := range m.byToken {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		candidates = append(candidates, r)
	}
	m.mu.Unlock()

	count := 0
	for _, r := range candidates {
		select {
		case <-ctx.Done():
			return count
		default:
		}

		state := r.State()
		switch {
		case state == StateNotificationSent && r.stateDuration() > model.RelayCalleeTimeout:
			if m.responder != nil {
				_ = m.responder.RespondNotAvailable(ctx, r)
			}
			m.destroy(r, "callee_timeout")
			count++
		case state == StateOpen && r.idleSince() > model.RelayIdleTimeout:
			m.destroy(r, "idle_timeout")
			count++
		}
	}
	return count
}
