package protocol

import (
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/wire"
)

// handleAppServiceAdd registers name as an application service this
// session's identity offers, bounded at model.MaxAppServices.
func handleAppServiceAdd(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req AppServiceAddRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}
	if req.Name == "" || len(req.Name) > model.TypeMax {
		return model.StatusInvalidValue, "name", nil, nil
	}
	if !hc.Session.AddAppService(req.Name) {
		return model.StatusQuotaExceeded, "", nil, nil
	}
	return model.StatusOk, "", wire.Marshal(&AppServiceAddResponse{}), nil
}

// handleAppServiceRemove drops a previously registered application
// service name.
func handleAppServiceRemove(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req AppServiceRemoveRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}
	hc.Session.RemoveAppService(req.Name)
	return model.StatusOk, "", wire.Marshal(&AppServiceRemoveResponse{}), nil
}

// handleCallIdentityAppService opens a relay to req.TargetIdentityID's
// req.ServiceName and sends it an IncomingCallNotification, opening
// the caller-notification handshake. The relay starts in
// NotificationSent; this handler defers its reply
// rather than answering the caller immediately, since the true outcome
// (Ok with the caller token, Rejected, or NotAvailable) is only known
// once the callee answers or the callee-notification timeout fires —
// internal/server's Connection.handleResponse and
// internal/relay.Manager.SweepExpired complete the handshake from there.
// A synchronous Notify failure is the one outcome this handler can
// already report: immediate delivery failure to the callee is
// NotAvailable.
func handleCallIdentityAppService(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req CallIdentityAppServiceRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	calleeSess, online := hc.Registry.Lookup(req.TargetIdentityID)
	if !online {
		return model.StatusNotFound, "", nil, nil
	}
	if !calleeSess.HasAppService(req.ServiceName) {
		return model.StatusNotFound, "service_name", nil, nil
	}

	r, err := hc.Relays.Create(hc.Session, calleeSess, req.ServiceName, hc.RequestID)
	if err != nil {
		return 0, "", nil, err
	}

	notice := &IncomingCallNotification{
		CallerIdentityID: hc.Session.PeerIdentityID,
		ServiceName:      req.ServiceName,
		CalleeToken:      r.CalleeToken,
	}
	if hc.Notifier != nil {
		if err := hc.Notifier.Notify(hc.Ctx, calleeSess, MsgIncomingCallNotification, r.CalleeToken, wire.Marshal(notice)); err != nil {
			hc.Relays.Destroy(r)
			return model.StatusNotAvailable, "", nil, nil
		}
	}

	return statusNoImmediateReply, "", nil, nil
}

// handleApplicationServiceSendMessage forwards payload across an open
// relay identified by token to the counterpart side, and delivers it as
// an AppServiceReceiveMessageNotification on that side's connection.
// An invalid token is fatal to the offending connection:
// the caller still gets one NotFound response, but the session is then
// force-disconnected rather than kept alive for more requests.
func handleApplicationServiceSendMessage(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req ApplicationServiceSendMessageRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	r, ok := hc.Relays.Lookup(req.Token)
	if !ok {
		hc.Session.RequestDisconnect()
		return model.StatusNotFound, "", nil, nil
	}
	if r.State() != relay.StateOpen {
		return model.StatusBadConversationStatus, "", nil, nil
	}

	var counterpartToken string
	peer := r.Caller
	if req.Token == r.CallerToken {
		peer = r.Callee
		counterpartToken = r.CalleeToken
	} else {
		counterpartToken = r.CallerToken
	}

	r.Touch()

	notice := &AppServiceReceiveMessageNotification{Token: counterpartToken, Payload: req.Payload}
	if hc.Notifier != nil {
		if err := hc.Notifier.Notify(hc.Ctx, peer, MsgAppServiceReceiveMessageNotification, counterpartToken, wire.Marshal(notice)); err != nil {
			return model.StatusNotFound, "", nil, nil
		}
	}

	return model.StatusOk, "", wire.Marshal(&ApplicationServiceSendMessageResponse{}), nil
}
