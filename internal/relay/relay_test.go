package relay

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/session"
)

func TestCreateAllocatesDistinctTokens(t *testing.T) {
	m := New()
	caller := session.New(&net.TCPAddr{})
	callee := session.New(&net.TCPAddr{})

	r, err := m.Create(caller, callee, "chat", 1)
	require.NoError(t, err)
	require.NotEqual(t, r.CallerToken, r.CalleeToken)
	require.Equal(t, StateNotificationSent, r.State())

	got, ok := m.Lookup(r.CallerToken)
	require.True(t, ok)
	require.Same(t, r, got)

	got, ok = m.Lookup(r.CalleeToken)
	require.True(t, ok)
	require.Same(t, r, got)
}

func TestAcceptOpensRelay(t *testing.T) {
	m := New()
	r, err := m.Create(session.New(&net.TCPAddr{}), session.New(&net.TCPAddr{}), "chat", 1)
	require.NoError(t, err)

	require.NoError(t, m.Accept(r))
	require.Equal(t, StateOpen, r.State())

	require.ErrorIs(t, m.Accept(r), ErrBadState)
}

func TestDestroyRemovesBothTokens(t *testing.T) {
	m := New()
	r, err := m.Create(session.New(&net.TCPAddr{}), session.New(&net.TCPAddr{}), "chat", 1)
	require.NoError(t, err)

	m.Destroy(r)
	require.Equal(t, StateDestroyed, r.State())

	_, ok := m.Lookup(r.CallerToken)
	require.False(t, ok)
	_, ok = m.Lookup(r.CalleeToken)
	require.False(t, ok)
}

func TestDestroyBySessionCancelsOwnedRelays(t *testing.T) {
	m := New()
	caller := session.New(&net.TCPAddr{})
	callee := session.New(&net.TCPAddr{})
	r, err := m.Create(caller, callee, "chat", 1)
	require.NoError(t, err)

	m.DestroyBySession(caller)
	require.Equal(t, StateDestroyed, r.State())
	_, ok := m.Lookup(r.CallerToken)
	require.False(t, ok)
}

func TestSweepExpiredDestroysStaleNotifications(t *testing.T) {
	m := New()
	r, err := m.Create(session.New(&net.TCPAddr{}), session.New(&net.TCPAddr{}), "chat", 1)
	require.NoError(t, err)

	r.mu.Lock()
	r.stateSince = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	n := m.SweepExpired(context.Background())
	require.Equal(t, 1, n)
	require.Equal(t, StateDestroyed, r.State())
}
