// Package session implements the per-connection conversation state:
// the None → Started → Verified/Authenticated status
// machine, challenge-response fields, keep-alive bookkeeping, the
// unfinished-request table for node-originated requests, the
// application-services set, and the cached search-result overflow page,
// combined behind one mutex-guarded struct.
package session

import (
	"crypto/ed25519"
	"net"
	"sync"
	"time"

	"github.com/marmos91/idhost/internal/model"
)

// PendingRequest is the context stored for a request this node
// originated to its peer (an incoming-call or app-service-message
// notification), so the matching response can be correlated and
// dispatched back to its initiator.
type PendingRequest struct {
	MessageID        uint32
	ConversationType uint8
	InnerType        uint8
	Token            string // relay token this notification concerns, if any
	CreatedAt        time.Time
}

// SearchPage caches the overflow of the last ProfileSearch response so a
// follow-up ProfileSearchPart request can page through it.
type SearchPage struct {
	Results      []any
	IncludeImages bool
}

// maxUnfinishedRequests bounds the unfinished-request table; eviction
// is oldest-first (see DESIGN.md), the entry most likely already
// abandoned by its peer.
const maxUnfinishedRequests = 256

// Session is the mutable state owned by one accepted connection.
type Session struct {
	mu sync.Mutex

	RemoteAddr net.Addr
	CreatedAt  time.Time

	status ConversationStatus

	PeerPublicKey  ed25519.PublicKey
	PeerIdentityID string

	// Challenge is the 32-byte value issued on StartConversation, echoed
	// back (signed) by the peer to move Started → Verified.
	Challenge []byte

	keepAliveDeadline time.Time

	unfinished      map[uint32]PendingRequest
	unfinishedOrder []uint32

	appServices map[string]struct{}

	searchPage *SearchPage

	forceDisconnect bool
}

// ConversationStatus re-exports model.ConversationStatus so callers need
// only import this package for session-shaped code.
type ConversationStatus = model.ConversationStatus

const (
	StatusNone          = model.StatusNone
	StatusStarted       = model.StatusStarted
	StatusVerified      = model.StatusVerified
	StatusAuthenticated = model.StatusAuthenticated
)

// New creates a freshly accepted session in StatusNone.
func New(remote net.Addr) *Session {
	now := time.Now()
	return &Session{
		RemoteAddr:        remote,
		CreatedAt:         now,
		status:            StatusNone,
		keepAliveDeadline: now.Add(model.KeepAliveInterval),
		unfinished:        make(map[uint32]PendingRequest),
		appServices:       make(map[string]struct{}),
	}
}

// Status returns the current conversation status.
func (s *Session) Status() ConversationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus transitions the session to status.
func (s *Session) SetStatus(status ConversationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Touch refreshes the keep-alive deadline; called after every
// successfully decoded message.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAliveDeadline = time.Now().Add(model.KeepAliveInterval)
}

// Expired reports whether the session is past its keep-alive deadline.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().After(s.keepAliveDeadline)
}

// RequestDisconnect sets the force-disconnect flag; the next loop
// iteration on this session's connection will close it.
func (s *Session) RequestDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceDisconnect = true
}

// ShouldDisconnect reports the force-disconnect flag.
func (s *Session) ShouldDisconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceDisconnect
}

// Authenticate records the peer's verified identity and public key,
// typically on a successful CheckIn.
func (s *Session) Authenticate(identityID string, pubKey ed25519.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PeerIdentityID = identityID
	s.PeerPublicKey = pubKey
	s.status = StatusAuthenticated
}

// AddPending records a request this node originated to the peer, keyed
// by message id. If the table is at capacity the oldest entry is
// evicted first.
func (s *Session) AddPending(req PendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.unfinished) >= maxUnfinishedRequests {
		oldest := s.unfinishedOrder[0]
		s.unfinishedOrder = s.unfinishedOrder[1:]
		delete(s.unfinished, oldest)
	}
	s.unfinished[req.MessageID] = req
	s.unfinishedOrder = append(s.unfinishedOrder, req.MessageID)
}

// TakePending removes and returns the pending request for id, for
// correlating an incoming response.
func (s *Session) TakePending(id uint32) (PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.unfinished[id]
	if !ok {
		return PendingRequest{}, false
	}
	delete(s.unfinished, id)
	for i, mid := range s.unfinishedOrder {
		if mid == id {
			s.unfinishedOrder = append(s.unfinishedOrder[:i], s.unfinishedOrder[i+1:]...)
			break
		}
	}
	return req, true
}

// AddAppService registers service in this session's app-services set.
// Returns false if the set is already at model.MaxAppServices.
func (s *Session) AddAppService(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.appServices[name]; exists {
		return true
	}
	if len(s.appServices) >= model.MaxAppServices {
		return false
	}
	s.appServices[name] = struct{}{}
	return true
}

// RemoveAppService unregisters service.
func (s *Session) RemoveAppService(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.appServices, name)
}

// HasAppService reports whether service is registered on this session.
func (s *Session) HasAppService(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.appServices[name]
	return ok
}

// SaveSearchResults caches the overflow page of the last search so a
// ProfileSearchPart request can page through it.
func (s *Session) SaveSearchResults(results []any, includeImages bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchPage = &SearchPage{Results: results, IncludeImages: includeImages}
}

// GetSearchResults returns the cached page's [offset:offset+count) slice.
func (s *Session) GetSearchResults(offset, count int) ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchPage == nil || offset >= len(s.searchPage.Results) {
		return nil, false
	}
	end := offset + count
	if end > len(s.searchPage.Results) {
		end = len(s.searchPage.Results)
	}
	return s.searchPage.Results[offset:end], true
}

// SearchResultsRemaining reports whether any results lie beyond offset+count
// in the cached page, for a ProfileSearchPart response's More flag.
func (s *Session) SearchResultsRemaining(offset, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchPage == nil {
		return false
	}
	return offset+count < len(s.searchPage.Results)
}

// SearchResultsIncludeImages reports the IncludeImages flag of the cached
// search page, or false if no page is cached.
func (s *Session) SearchResultsIncludeImages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchPage == nil {
		return false
	}
	return s.searchPage.IncludeImages
}
