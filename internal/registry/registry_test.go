package registry

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/session"
)

type fakeConn struct{ net.Conn }

func TestCheckInDisplacesPriorSession(t *testing.T) {
	r := New()

	first := session.New(&net.TCPAddr{})
	first.Authenticate("alice", nil)
	second := session.New(&net.TCPAddr{})
	second.Authenticate("alice", nil)

	c1, c2 := &fakeConn{}, &fakeConn{}
	r.Add(c1, first)
	r.Add(c2, second)

	r.CheckIn("alice", first)
	require.False(t, first.ShouldDisconnect())

	r.CheckIn("alice", second)
	require.True(t, first.ShouldDisconnect(), "first session should be flagged for disconnect")

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	require.Same(t, second, got)
}

func TestRemoveClearsIdentityIndexOnlyForOwner(t *testing.T) {
	r := New()
	sess := session.New(&net.TCPAddr{})
	sess.Authenticate("bob", nil)

	conn := &fakeConn{}
	r.Add(conn, sess)
	r.CheckIn("bob", sess)

	r.Remove(conn)

	_, ok := r.BySession(conn)
	require.False(t, ok)
	_, ok = r.Lookup("bob")
	require.False(t, ok)
}

func TestCountReflectsRegisteredSessions(t *testing.T) {
	r := New()
	sess := session.New(&net.TCPAddr{})
	sess.Authenticate("carol", nil)
	conn := &fakeConn{}
	r.Add(conn, sess)
	r.CheckIn("carol", sess)

	conns, idents := r.Count()
	require.Equal(t, 1, conns)
	require.Equal(t, 1, idents)
}
