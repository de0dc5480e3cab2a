package protocol

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/marmos91/idhost/internal/images"
	"github.com/marmos91/idhost/internal/logger"
	"github.com/marmos91/idhost/internal/metrics"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/registry"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/session"
	"github.com/marmos91/idhost/internal/store"
)

// Notifier sends a node-originated request to a peer's live connection,
// implemented by internal/server over the session's underlying net.Conn.
// Handlers use it for the two notifications the source initiates rather
// than responds to: IncomingCallNotification and
// AppServiceReceiveMessageNotification.
type Notifier interface {
	Notify(ctx context.Context, sess *session.Session, msgType MessageType, token string, body []byte) error
}

// HandlerContext is the per-request bundle of dependencies a handler
// needs. Roles is the
// static role set bound to the accepting port (set once per connection
// by internal/server), not session state.
type HandlerContext struct {
	Ctx context.Context

	// RequestID is the message id of the request currently being
	// dispatched, set by Dispatch before the handler runs. Handlers that
	// defer their reply (handleCallIdentityAppService) stash it so the
	// eventual out-of-band response can be addressed back to it.
	RequestID uint32

	Session  *session.Session
	Roles    RoleSet
	Registry *registry.Registry
	Store    *store.Store
	Images   images.Store
	Relays   *relay.Manager
	Notifier Notifier

	ServerPublicKey  ed25519.PublicKey
	ServerPrivateKey ed25519.PrivateKey

	MaxHostedIdentities  int
	MaxIdentityRelations int
	MaxFollowerServers   int
}

// HandlerFunc processes one decoded request body and returns the status,
// an optional details string (field name on InvalidValue), and the
// encoded response body. A non-nil error is a handler-internal failure
// mapped to StatusInternal by Dispatch; handlers signal protocol-visible
// failures through the returned status instead.
//
// A handler may return statusNoImmediateReply instead of a real status
// to defer its reply: Dispatch writes nothing,
// and a later event (a callee's reply, a relay timeout) answers the
// original caller out of band instead.
type HandlerFunc func(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error)

// statusNoImmediateReply is an internal sentinel, never serialized onto
// the wire (Dispatch intercepts it before it reaches a Response), that a
// handler returns to keep the connection open without writing a reply
// now. Chosen outside model.StatusCode's declared
// range so it can never collide with a real status.
const statusNoImmediateReply model.StatusCode = 0xFF

// procedure bundles a handler with the role/status preconditions
// checked before it runs.
type procedure struct {
	Name           string
	RequiredRoles  RoleSet
	RequiredStatus model.ConversationStatus
	Handler        HandlerFunc
}

// dispatchTable maps every request MessageType to its procedure
// metadata. Built once at package init.
var dispatchTable map[MessageType]*procedure

func init() {
	dispatchTable = map[MessageType]*procedure{
		MsgPing: {
			Name:          "Ping",
			RequiredRoles: NewRoleSet(model.RolePrimary, model.RoleNonCustomer, model.RoleCustomer, model.RoleAppService, model.RoleNeighbor, model.RoleColleague),
			// Stateless SingleRequest: callable from any conversation
			// status, not just None.
			RequiredStatus: model.StatusAny,
			Handler:        handlePing,
		},
		MsgListRoles: {
			Name:           "ListRoles",
			RequiredRoles:  NewRoleSet(model.RolePrimary, model.RoleNonCustomer, model.RoleCustomer, model.RoleAppService, model.RoleNeighbor, model.RoleColleague),
			RequiredStatus: model.StatusAny,
			Handler:        handleListRoles,
		},
		MsgGetIdentityInformation: {
			Name:           "GetIdentityInformation",
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer, model.RoleCustomer, model.RoleNeighbor),
			RequiredStatus: model.StatusAny,
			Handler:        handleGetIdentityInformation,
		},
		MsgProfileStats: {
			Name:           "ProfileStats",
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer, model.RoleColleague),
			RequiredStatus: model.StatusAny,
			Handler:        handleProfileStats,
		},
		MsgGetIdentityRelationships: {
			Name:           "GetIdentityRelationships",
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer, model.RoleCustomer),
			RequiredStatus: model.StatusVerified,
			Handler:        handleGetIdentityRelationships,
		},
		MsgAddRelatedIdentity: {
			Name:           "AddRelatedIdentity",
			RequiredRoles:  NewRoleSet(model.RoleCustomer),
			RequiredStatus: model.StatusAuthenticated,
			Handler:        handleAddRelatedIdentity,
		},
		MsgRemoveRelatedIdentity: {
			Name:           "RemoveRelatedIdentity",
			RequiredRoles:  NewRoleSet(model.RoleCustomer),
			RequiredStatus: model.StatusAuthenticated,
			Handler:        handleRemoveRelatedIdentity,
		},
		MsgStartConversation: {
			Name:           "StartConversation",
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer, model.RoleCustomer),
			RequiredStatus: model.StatusNone,
			Handler:        handleStartConversation,
		},
		MsgHostingRegister: {
			Name:           "HostingRegister",
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer),
			RequiredStatus: model.StatusStarted,
			Handler:        handleHostingRegister,
		},
		MsgCheckIn: {
			Name:           "CheckIn",
			RequiredRoles:  NewRoleSet(model.RoleCustomer),
			RequiredStatus: model.StatusStarted,
			Handler:        handleCheckIn,
		},
		MsgVerifyIdentity: {
			Name: "VerifyIdentity",
			// Non-customer role only; on the customer role this
			// yields BadRole.
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer),
			RequiredStatus: model.StatusStarted,
			Handler:        handleVerifyIdentity,
		},
		MsgUpdateProfile: {
			Name:           "UpdateProfile",
			RequiredRoles:  NewRoleSet(model.RoleCustomer),
			RequiredStatus: model.StatusAuthenticated,
			Handler:        handleUpdateProfile,
		},
		MsgCancelHosting: {
			Name:           "CancelHosting",
			RequiredRoles:  NewRoleSet(model.RoleCustomer),
			RequiredStatus: model.StatusAuthenticated,
			Handler:        handleCancelHosting,
		},
		MsgAppServiceAdd: {
			Name:           "AppServiceAdd",
			RequiredRoles:  NewRoleSet(model.RoleCustomer, model.RoleNonCustomer),
			RequiredStatus: model.StatusVerified,
			Handler:        handleAppServiceAdd,
		},
		MsgAppServiceRemove: {
			Name:           "AppServiceRemove",
			RequiredRoles:  NewRoleSet(model.RoleCustomer, model.RoleNonCustomer),
			RequiredStatus: model.StatusVerified,
			Handler:        handleAppServiceRemove,
		},
		MsgCallIdentityAppService: {
			Name:           "CallIdentityAppService",
			RequiredRoles:  NewRoleSet(model.RoleCustomer, model.RoleNonCustomer),
			RequiredStatus: model.StatusVerified,
			Handler:        handleCallIdentityAppService,
		},
		MsgApplicationServiceSendMessage: {
			Name:           "ApplicationServiceSendMessage",
			RequiredRoles:  NewRoleSet(model.RoleAppService),
			RequiredStatus: model.StatusAny,
			Handler:        handleApplicationServiceSendMessage,
		},
		MsgProfileSearch: {
			Name:           "ProfileSearch",
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer, model.RoleCustomer),
			RequiredStatus: model.StatusAny,
			Handler:        handleProfileSearch,
		},
		MsgProfileSearchPart: {
			Name:           "ProfileSearchPart",
			RequiredRoles:  NewRoleSet(model.RoleNonCustomer, model.RoleCustomer),
			RequiredStatus: model.StatusAny,
			Handler:        handleProfileSearchPart,
		},
	}
}

// Dispatch runs the procedure for req.Type against hc, enforcing role and
// status preconditions before invoking the handler, and recovers from any
// handler panic by reporting StatusInternal rather than crashing the
// connection's read loop. A nil
// return means the handler deferred its reply; the
// caller must not write anything for this request.
func Dispatch(hc *HandlerContext, req *Request) (resp *Response) {
	resp = &Response{MessageID: req.MessageID}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("protocol: handler panic", "type", req.Type.String(), "panic", rec)
			resp.Status = model.StatusInternal
			resp.Details = ""
			resp.Body = nil
		}
		if resp != nil && resp.Status == statusNoImmediateReply {
			metrics.RecordRequest(req.Type.String(), "Deferred", time.Since(start))
			resp = nil
			return
		}
		metrics.RecordRequest(req.Type.String(), resp.Status.String(), time.Since(start))
	}()

	proc, ok := dispatchTable[req.Type]
	if !ok {
		resp.Status = model.StatusUnsupported
		return resp
	}

	if !proc.RequiredRoles.hasAny(hc.Roles) {
		resp.Status = model.StatusBadRole
		return resp
	}

	if !hc.Session.Status().Satisfies(proc.RequiredStatus) {
		resp.Status = model.StatusBadConversationStatus
		return resp
	}

	hc.RequestID = req.MessageID
	status, details, body, err := proc.Handler(hc, req.Body)
	if err != nil {
		logger.ErrorCtx(hc.Ctx, "protocol: handler error", "type", proc.Name, "error", err)
		resp.Status = model.StatusInternal
		return resp
	}

	if status == statusNoImmediateReply {
		resp.Status = statusNoImmediateReply
		return resp
	}

	resp.Status = status
	resp.Details = details
	resp.Body = body
	return resp
}
