// Package protocol implements the request/response processing layer:
// the message catalog, the role/status-checked dispatch table, and the
// handlers that consult internal/session, internal/registry,
// internal/store, internal/images, and internal/relay to answer every
// request type.
package protocol

import "github.com/marmos91/idhost/internal/model"

// MessageType identifies a request or notification's inner payload kind.
// Values are assigned by iota starting at 1, so each constant's wire value
// is fixed by its position in the list below.
type MessageType uint8

const (
	MsgPing MessageType = iota + 1
	MsgListRoles
	MsgGetIdentityInformation
	MsgApplicationServiceSendMessage
	MsgProfileStats
	MsgGetIdentityRelationships
	MsgStartConversation
	MsgHostingRegister
	MsgCheckIn
	MsgVerifyIdentity
	MsgUpdateProfile
	MsgCancelHosting
	MsgAppServiceAdd
	MsgAppServiceRemove
	MsgCallIdentityAppService
	MsgProfileSearch
	MsgProfileSearchPart
	MsgAddRelatedIdentity
	MsgRemoveRelatedIdentity

	// Node-initiated messages, carried as Requests this node sends to a
	// peer and tracked in that peer's session via AddPending.
	MsgIncomingCallNotification
	MsgAppServiceReceiveMessageNotification
)

func (t MessageType) String() string {
	switch t {
	case MsgPing:
		return "Ping"
	case MsgListRoles:
		return "ListRoles"
	case MsgGetIdentityInformation:
		return "GetIdentityInformation"
	case MsgApplicationServiceSendMessage:
		return "ApplicationServiceSendMessage"
	case MsgProfileStats:
		return "ProfileStats"
	case MsgGetIdentityRelationships:
		return "GetIdentityRelationships"
	case MsgStartConversation:
		return "StartConversation"
	case MsgHostingRegister:
		return "HostingRegister"
	case MsgCheckIn:
		return "CheckIn"
	case MsgVerifyIdentity:
		return "VerifyIdentity"
	case MsgUpdateProfile:
		return "UpdateProfile"
	case MsgCancelHosting:
		return "CancelHosting"
	case MsgAppServiceAdd:
		return "AppServiceAdd"
	case MsgAppServiceRemove:
		return "AppServiceRemove"
	case MsgCallIdentityAppService:
		return "CallIdentityAppService"
	case MsgProfileSearch:
		return "ProfileSearch"
	case MsgProfileSearchPart:
		return "ProfileSearchPart"
	case MsgAddRelatedIdentity:
		return "AddRelatedIdentity"
	case MsgRemoveRelatedIdentity:
		return "RemoveRelatedIdentity"
	case MsgIncomingCallNotification:
		return "IncomingCallNotification"
	case MsgAppServiceReceiveMessageNotification:
		return "AppServiceReceiveMessageNotification"
	default:
		return "Unknown"
	}
}

// Kind distinguishes the two Request shapes: a SingleRequest is stateless and version-stamped, a
// ConversationRequest is session-bound and may carry a signature.
type Kind uint8

const (
	KindSingle Kind = iota
	KindConversation
)

// RoleSet is a small fixed-membership set of model.Role. It expresses
// both a procedure's "callable from these roles" requirement and a
// listening port's bound role set. A role server hosts a disjoint set
// of roles.
type RoleSet map[model.Role]struct{}

// NewRoleSet builds a RoleSet from its members.
func NewRoleSet(rs ...model.Role) RoleSet {
	set := make(RoleSet, len(rs))
	for _, r := range rs {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) has(r model.Role) bool {
	_, ok := s[r]
	return ok
}

// hasAny reports whether s and other share at least one role, used to
// check a procedure's required roles against a port's bound role set.
func (s RoleSet) hasAny(other RoleSet) bool {
	for r := range other {
		if s.has(r) {
			return true
		}
	}
	return false
}

// Slice returns the set's members in unspecified order, for responses
// like ListRoles that echo the connection's bound roles.
func (s RoleSet) Slice() []model.Role {
	out := make([]model.Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	return out
}
