package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/protocol"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/session"
)

func TestNotifyWritesRequestOnTrackedConnection(t *testing.T) {
	tr := NewTracker()
	sess := session.New(&net.TCPAddr{})
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	conn := &Connection{conn: clientConn, session: sess}
	tr.register(sess, conn)

	reqCh := make(chan *protocol.Request, 1)
	go func() {
		req, _, err := protocol.ReadMessage(peerConn)
		require.NoError(t, err)
		reqCh <- req
	}()

	err := tr.Notify(context.Background(), sess, protocol.MsgIncomingCallNotification, "relay-token", []byte("payload"))
	require.NoError(t, err)

	var req *protocol.Request
	select {
	case req = <-reqCh:
		require.Equal(t, protocol.MsgIncomingCallNotification, req.Type)
		require.Equal(t, protocol.KindConversation, req.Kind)
		require.Equal(t, []byte("payload"), req.Body)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notified request")
	}

	_, pending := sess.TakePending(req.MessageID)
	require.True(t, pending)
}

func TestNotifyUnknownSessionReturnsError(t *testing.T) {
	tr := NewTracker()
	sess := session.New(&net.TCPAddr{})
	err := tr.Notify(context.Background(), sess, protocol.MsgIncomingCallNotification, "token", nil)
	require.Error(t, err)
}

func TestRespondWritesResponseOnTrackedConnection(t *testing.T) {
	tr := NewTracker()
	sess := session.New(&net.TCPAddr{})
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	conn := &Connection{conn: clientConn, session: sess}
	tr.register(sess, conn)

	respCh := make(chan *protocol.Response, 1)
	go func() {
		_, resp, err := protocol.ReadMessage(peerConn)
		require.NoError(t, err)
		respCh <- resp
	}()

	err := tr.Respond(context.Background(), sess, &protocol.Response{MessageID: 7, Status: model.StatusOk})
	require.NoError(t, err)

	select {
	case resp := <-respCh:
		require.Equal(t, uint32(7), resp.MessageID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for deferred response")
	}
}

func TestRespondNotAvailableAnswersCallerThroughTracker(t *testing.T) {
	tr := NewTracker()
	caller := session.New(&net.TCPAddr{})
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	conn := &Connection{conn: clientConn, session: caller}
	tr.register(caller, conn)

	r := &relay.Relay{Caller: caller, CallerMessageID: 9}

	respCh := make(chan *protocol.Response, 1)
	go func() {
		_, resp, err := protocol.ReadMessage(peerConn)
		require.NoError(t, err)
		respCh <- resp
	}()

	require.NoError(t, tr.RespondNotAvailable(context.Background(), r))

	select {
	case resp := <-respCh:
		require.Equal(t, uint32(9), resp.MessageID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for NotAvailable response")
	}
}

func TestUnregisterStopsNotify(t *testing.T) {
	tr := NewTracker()
	sess := session.New(&net.TCPAddr{})
	clientConn, peerConn := net.Pipe()
	defer clientConn.Close()
	defer peerConn.Close()

	conn := &Connection{conn: clientConn, session: sess}
	tr.register(sess, conn)
	tr.unregister(sess)

	err := tr.Notify(context.Background(), sess, protocol.MsgIncomingCallNotification, "token", nil)
	require.Error(t, err)
}
