package protocol

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/session"
	"github.com/marmos91/idhost/internal/wire"
)

var errCalleeUnreachable = errors.New("callee unreachable")

// recordingNotifier captures every node-originated notification sent
// during a test, standing in for internal/server's live-connection
// writer.
type recordingNotifier struct {
	notified []struct {
		sess    *session.Session
		msgType MessageType
		token   string
		body    []byte
	}
	failNext bool
}

func (n *recordingNotifier) Notify(ctx context.Context, sess *session.Session, msgType MessageType, token string, body []byte) error {
	if n.failNext {
		n.failNext = false
		return errCalleeUnreachable
	}
	n.notified = append(n.notified, struct {
		sess    *session.Session
		msgType MessageType
		token   string
		body    []byte
	}{sess, msgType, token, body})
	return nil
}

func TestAppServiceAddAndRemove(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	hc.Session.SetStatus(model.StatusAuthenticated)

	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgAppServiceAdd, Body: wire.Marshal(&AppServiceAddRequest{Name: "chat"})})
	require.Equal(t, model.StatusOk, resp.Status)
	require.True(t, hc.Session.HasAppService("chat"))

	resp = Dispatch(hc, &Request{MessageID: 2, Type: MsgAppServiceRemove, Body: wire.Marshal(&AppServiceRemoveRequest{Name: "chat"})})
	require.Equal(t, model.StatusOk, resp.Status)
	require.False(t, hc.Session.HasAppService("chat"))
}

func TestAppServiceAddRejectsEmptyName(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	hc.Session.SetStatus(model.StatusAuthenticated)
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgAppServiceAdd, Body: wire.Marshal(&AppServiceAddRequest{Name: ""})})
	require.Equal(t, model.StatusInvalidValue, resp.Status)
	require.Equal(t, "name", resp.Details)
}

func TestCallIdentityAppServiceDefersReplyAndNotifiesCallee(t *testing.T) {
	callerHC, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	callerHC.Session.SetStatus(model.StatusAuthenticated)
	callerHC.Session.PeerIdentityID = "caller-id"

	calleeSess := session.New(&net.TCPAddr{})
	calleeSess.PeerIdentityID = "callee-id"
	calleeSess.AddAppService("chat")
	callerHC.Registry.CheckIn("callee-id", calleeSess)

	notifier := &recordingNotifier{}
	callerHC.Notifier = notifier

	// handleCallIdentityAppService defers its reply: the caller's
	// final answer is synthesized later, either by
	// internal/server's Connection.handleResponse once the callee
	// replies, or by internal/relay.Manager.SweepExpired on timeout.
	resp := Dispatch(callerHC, &Request{MessageID: 1, Type: MsgCallIdentityAppService, Body: wire.Marshal(&CallIdentityAppServiceRequest{
		TargetIdentityID: "callee-id", ServiceName: "chat",
	})})
	require.Nil(t, resp)

	require.Len(t, notifier.notified, 1)
	require.Equal(t, MsgIncomingCallNotification, notifier.notified[0].msgType)
	require.Same(t, calleeSess, notifier.notified[0].sess)

	require.Equal(t, 1, callerHC.Relays.Count())
	r, ok := callerHC.Relays.Lookup(notifier.notified[0].token)
	require.True(t, ok)
	require.Equal(t, uint32(1), r.CallerMessageID)
	require.NotEmpty(t, r.CallerToken)
}

func TestCallIdentityAppServiceUnknownTargetIsNotFound(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	hc.Session.SetStatus(model.StatusAuthenticated)
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgCallIdentityAppService, Body: wire.Marshal(&CallIdentityAppServiceRequest{
		TargetIdentityID: "nobody", ServiceName: "chat",
	})})
	require.Equal(t, model.StatusNotFound, resp.Status)
}

func TestCallIdentityAppServiceTargetWithoutServiceIsNotFound(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	hc.Session.SetStatus(model.StatusAuthenticated)

	calleeSess := session.New(&net.TCPAddr{})
	hc.Registry.CheckIn("callee-id", calleeSess)

	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgCallIdentityAppService, Body: wire.Marshal(&CallIdentityAppServiceRequest{
		TargetIdentityID: "callee-id", ServiceName: "chat",
	})})
	require.Equal(t, model.StatusNotFound, resp.Status)
	require.Equal(t, "service_name", resp.Details)
}

func TestCallIdentityAppServiceNotifyFailureDestroysRelay(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	hc.Session.SetStatus(model.StatusAuthenticated)

	calleeSess := session.New(&net.TCPAddr{})
	calleeSess.AddAppService("chat")
	hc.Registry.CheckIn("callee-id", calleeSess)

	hc.Notifier = &recordingNotifier{failNext: true}

	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgCallIdentityAppService, Body: wire.Marshal(&CallIdentityAppServiceRequest{
		TargetIdentityID: "callee-id", ServiceName: "chat",
	})})
	require.Equal(t, model.StatusNotAvailable, resp.Status)
	require.Equal(t, 0, hc.Relays.Count())
}

func TestApplicationServiceSendMessageForwardsAcrossOpenRelay(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleAppService))

	callerSess := session.New(&net.TCPAddr{})
	calleeSess := session.New(&net.TCPAddr{})
	r, err := hc.Relays.Create(callerSess, calleeSess, "chat", 1)
	require.NoError(t, err)
	require.NoError(t, hc.Relays.Accept(r))

	notifier := &recordingNotifier{}
	hc.Notifier = notifier

	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgApplicationServiceSendMessage, Body: wire.Marshal(&ApplicationServiceSendMessageRequest{
		Token: r.CallerToken, Payload: []byte("hello"),
	})})
	require.Equal(t, model.StatusOk, resp.Status)
	require.Len(t, notifier.notified, 1)
	require.Same(t, calleeSess, notifier.notified[0].sess)
	require.Equal(t, r.CalleeToken, notifier.notified[0].token)
}

func TestApplicationServiceSendMessageInvalidTokenIsNotFoundAndClosesConnection(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleAppService))
	require.False(t, hc.Session.ShouldDisconnect())
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgApplicationServiceSendMessage, Body: wire.Marshal(&ApplicationServiceSendMessageRequest{
		Token: "unknown-token", Payload: []byte("hello"),
	})})
	require.Equal(t, model.StatusNotFound, resp.Status)
	require.True(t, hc.Session.ShouldDisconnect())
}

func TestApplicationServiceSendMessageOnUnopenedRelayIsBadConversationStatus(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleAppService))
	callerSess := session.New(&net.TCPAddr{})
	calleeSess := session.New(&net.TCPAddr{})
	r, err := hc.Relays.Create(callerSess, calleeSess, "chat", 1)
	require.NoError(t, err)

	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgApplicationServiceSendMessage, Body: wire.Marshal(&ApplicationServiceSendMessageRequest{
		Token: r.CallerToken, Payload: []byte("hello"),
	})})
	require.Equal(t, model.StatusBadConversationStatus, resp.Status)
}
