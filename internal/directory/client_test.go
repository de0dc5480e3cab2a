package directory

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/wire"
)

// newPipedClient wires up a Client over an in-process net.Pipe so tests
// can act as the directory server side without a real listener.
func newPipedClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	st, err := store.New(&store.Config{Type: store.DatabaseTypeSQLite, SQLite: store.SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	c := &Client{cfg: Config{DialTimeout: time.Second}, store: st, conn: clientConn}
	c.wg.Add(1)
	go c.readLoop()
	t.Cleanup(func() { _ = c.Close() })

	return c, serverConn
}

func readServerRequest(t *testing.T, conn net.Conn) (messageType, *wire.Reader) {
	t.Helper()
	_, body, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	r := wire.NewReader(body)
	typ, err := r.GetUint8()
	require.NoError(t, err)
	return messageType(typ), r
}

// writeServerReply frames resp the way the directory does: like every
// message on this channel (see encodeMessage), it starts with a type
// byte, here echoing the request's type.
func writeServerReply(t *testing.T, conn net.Conn, typ messageType, resp wire.Encodable) {
	t.Helper()
	w := wire.NewWriter()
	w.PutUint8(uint8(typ))
	resp.Encode(w)
	require.NoError(t, wire.WriteFrame(conn, wire.TagMessage, w.Bytes()))
}

func TestRegisterServiceAcceptedRoundTrip(t *testing.T) {
	c, srv := newPipedClient(t)

	done := make(chan error, 1)
	go func() { done <- c.RegisterService("node-1", 9000) }()

	typ, r := readServerRequest(t, srv)
	require.Equal(t, msgRegisterService, typ)
	var req registerServiceRequest
	require.NoError(t, req.Decode(r))
	require.Equal(t, "node-1", req.ServerID)
	require.EqualValues(t, 9000, req.Port)

	writeServerReply(t, srv, typ, &registerServiceResponse{Accepted: true})
	require.NoError(t, <-done)
}

func TestRegisterServiceRejected(t *testing.T) {
	c, srv := newPipedClient(t)

	done := make(chan error, 1)
	go func() { done <- c.RegisterService("node-1", 9000) }()

	typ, _ := readServerRequest(t, srv)
	writeServerReply(t, srv, typ, &registerServiceResponse{Accepted: false})

	err := <-done
	require.Error(t, err)
}

func TestGetNeighborNodesByDistanceReturnsNodes(t *testing.T) {
	c, srv := newPipedClient(t)

	done := make(chan struct {
		nodes []NodeInfo
		err   error
	}, 1)
	go func() {
		nodes, err := c.GetNeighborNodesByDistance(true)
		done <- struct {
			nodes []NodeInfo
			err   error
		}{nodes, err}
	}()

	typ, r := readServerRequest(t, srv)
	require.Equal(t, msgGetNeighborNodesByDistance, typ)
	var req getNeighborNodesByDistanceRequest
	require.NoError(t, req.Decode(r))
	require.True(t, req.KeepAlive)

	writeServerReply(t, srv, typ, &getNeighborNodesByDistanceResponse{Nodes: []NodeInfo{
		{NodeID: "n1", Address: "10.0.0.1", Port: 7000, DistanceKM: 3.5, HomeNodeIDs: []string{"id-a"}},
	}})

	result := <-done
	require.NoError(t, result.err)
	require.Len(t, result.nodes, 1)
	require.Equal(t, "n1", result.nodes[0].NodeID)
	require.InDelta(t, 3.5, result.nodes[0].DistanceKM, 0.0001)
}

func TestUnsolicitedNeighborhoodChangeMirrorsIntoStore(t *testing.T) {
	c, srv := newPipedClient(t)

	w := wire.NewWriter()
	w.PutUint8(uint8(msgNeighborhoodChanged))
	notice := &neighborhoodChangedNotification{
		Added: []NodeInfo{{NodeID: "node-x", HomeNodeIDs: []string{"identity-1", "identity-2"}}},
	}
	notice.Encode(w)
	require.NoError(t, wire.WriteFrame(srv, wire.TagMessage, w.Bytes()))

	ctx := context.Background()
	require.Eventually(t, func() bool {
		n, err := c.store.CountNeighbors(ctx)
		return err == nil && n == 2
	}, time.Second, 10*time.Millisecond)

	w2 := wire.NewWriter()
	w2.PutUint8(uint8(msgNeighborhoodChanged))
	removal := &neighborhoodChangedNotification{Removed: []string{"node-x"}}
	removal.Encode(w2)
	require.NoError(t, wire.WriteFrame(srv, wire.TagMessage, w2.Bytes()))

	require.Eventually(t, func() bool {
		n, err := c.store.CountNeighbors(ctx)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestClientCallReturnsErrorAfterClose(t *testing.T) {
	c, srv := newPipedClient(t)
	_ = srv
	require.NoError(t, c.Close())

	err := c.DeregisterService("node-1")
	require.ErrorIs(t, err, errClientClosed)
}
