package protocol

import (
	"context"
	"crypto/ed25519"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/idhost/internal/cryptoutil"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/registry"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/session"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/wire"
)

func newTestHandlerContext(t *testing.T, roles RoleSet) (*HandlerContext, *store.Store) {
	t.Helper()
	st, err := store.New(&store.Config{Type: store.DatabaseTypeSQLite, SQLite: store.SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	serverPub, serverPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	hc := &HandlerContext{
		Ctx:                  context.Background(),
		Session:              session.New(&net.TCPAddr{}),
		Roles:                roles,
		Registry:             registry.New(),
		Store:                st,
		Relays:               relay.New(),
		ServerPublicKey:      serverPub,
		ServerPrivateKey:     serverPriv,
		MaxHostedIdentities:  0,
		MaxIdentityRelations: 0,
	}
	return hc, st
}

func TestDispatchUnsupportedMessageType(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RolePrimary))
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MessageType(250)})
	require.Equal(t, model.StatusUnsupported, resp.Status)
}

func TestDispatchBadRole(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleAppService))
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgHostingRegister, Body: wire.Marshal(&HostingRegisterRequest{ContractType: "person"})})
	require.Equal(t, model.StatusBadRole, resp.Status)
}

func TestDispatchBadConversationStatus(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleNonCustomer))
	// HostingRegister requires StatusStarted; session starts in StatusNone.
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgHostingRegister, Body: wire.Marshal(&HostingRegisterRequest{ContractType: "person"})})
	require.Equal(t, model.StatusBadConversationStatus, resp.Status)
}

func TestDispatchVerifiedRequirementSatisfiedByAuthenticated(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	hc.Session.SetStatus(model.StatusAuthenticated)
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgAppServiceAdd, Body: wire.Marshal(&AppServiceAddRequest{Name: "chat"})})
	require.Equal(t, model.StatusOk, resp.Status)
}

func TestDispatchMalformedBodyIsProtocolViolation(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleNonCustomer))
	// GetIdentityInformationRequest.Decode reads a length-prefixed string;
	// one stray byte is too short to hold even the length prefix.
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgGetIdentityInformation, Body: []byte{0xFF}})
	require.Equal(t, model.StatusProtocolViolation, resp.Status)
}

func TestPingEchoesAndSetsOk(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RolePrimary))
	resp := Dispatch(hc, &Request{MessageID: 42, Type: MsgPing, Body: wire.Marshal(&PingRequest{})})
	require.Equal(t, model.StatusOk, resp.Status)
	require.Equal(t, uint32(42), resp.MessageID)
}

// TestFullHostingCycle drives a full hosting cycle: StartConversation,
// HostingRegister, CheckIn, UpdateProfile, GetIdentityInformation.
func TestFullHostingCycle(t *testing.T) {
	nonCustomer, st := newTestHandlerContext(t, NewRoleSet(model.RoleNonCustomer))

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	startResp := Dispatch(nonCustomer, &Request{
		MessageID: 1, Type: MsgStartConversation,
		Body: wire.Marshal(&StartConversationRequest{
			Versions:        []model.Version{model.SupportedVersion},
			PublicKey:       pub,
			ClientChallenge: make([]byte, cryptoutil.ChallengeSize),
		}),
	})
	require.Equal(t, model.StatusOk, startResp.Status)
	require.Equal(t, model.StatusStarted, nonCustomer.Session.Status())

	challenge := nonCustomer.Session.Challenge
	sig := ed25519.Sign(priv, challenge)

	regResp := Dispatch(nonCustomer, &Request{
		MessageID: 2, Type: MsgHostingRegister,
		Body: wire.Marshal(&HostingRegisterRequest{ContractType: "person", Signature: sig}),
	})
	require.Equal(t, model.StatusOk, regResp.Status)

	var regOut HostingRegisterResponse
	require.NoError(t, wire.Unmarshal(regResp.Body, &regOut))
	identityID := regOut.IdentityID
	require.NotEmpty(t, identityID)

	// Second HostingRegister on a fresh conversation for the same identity
	// fails with AlreadyExists while the contract is active.
	nonCustomer2, _ := newTestHandlerContext(t, NewRoleSet(model.RoleNonCustomer))
	nonCustomer2.Store = st
	Dispatch(nonCustomer2, &Request{MessageID: 1, Type: MsgStartConversation, Body: wire.Marshal(&StartConversationRequest{
		Versions: []model.Version{model.SupportedVersion}, PublicKey: pub, ClientChallenge: make([]byte, cryptoutil.ChallengeSize),
	})})
	sig2 := ed25519.Sign(priv, nonCustomer2.Session.Challenge)
	dupResp := Dispatch(nonCustomer2, &Request{MessageID: 2, Type: MsgHostingRegister, Body: wire.Marshal(&HostingRegisterRequest{ContractType: "person", Signature: sig2})})
	require.Equal(t, model.StatusAlreadyExists, dupResp.Status)

	// Reconnect on the customer role and check in.
	customer, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	customer.Store = st
	customer.Registry = nonCustomer.Registry

	custStart := Dispatch(customer, &Request{MessageID: 1, Type: MsgStartConversation, Body: wire.Marshal(&StartConversationRequest{
		Versions: []model.Version{model.SupportedVersion}, PublicKey: pub, ClientChallenge: make([]byte, cryptoutil.ChallengeSize),
	})})
	require.Equal(t, model.StatusOk, custStart.Status)

	checkInSig := ed25519.Sign(priv, customer.Session.Challenge)
	checkInResp := Dispatch(customer, &Request{MessageID: 2, Type: MsgCheckIn, Body: wire.Marshal(&CheckInRequest{
		Challenge: customer.Session.Challenge, Signature: checkInSig,
	})})
	require.Equal(t, model.StatusOk, checkInResp.Status)
	require.Equal(t, model.StatusAuthenticated, customer.Session.Status())
	require.Equal(t, identityID, customer.Session.PeerIdentityID)

	name := "Alice"
	version := model.SupportedVersion
	loc := model.Location{Latitude: 50.0, Longitude: 14.4}
	updResp := Dispatch(customer, &Request{MessageID: 3, Type: MsgUpdateProfile, Body: wire.Marshal(&UpdateProfileRequest{
		SetVersion: &version, SetName: &name, SetLocation: &loc,
	})})
	require.Equal(t, model.StatusOk, updResp.Status)

	infoResp := Dispatch(nonCustomer, &Request{MessageID: 3, Type: MsgGetIdentityInformation, Body: wire.Marshal(&GetIdentityInformationRequest{IdentityID: identityID})})
	require.Equal(t, model.StatusOk, infoResp.Status)
	var info GetIdentityInformationResponse
	require.NoError(t, wire.Unmarshal(infoResp.Body, &info))
	require.True(t, info.IsHosted)
	require.True(t, info.IsOnline)
	require.Equal(t, "Alice", info.Name)
}

// TestCheckInWithWrongKeySignatureFails: CheckIn signed by a different key than the one presented at
// StartConversation yields InvalidSignature.
func TestCheckInWithWrongKeySignatureFails(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	Dispatch(hc, &Request{MessageID: 1, Type: MsgStartConversation, Body: wire.Marshal(&StartConversationRequest{
		Versions: []model.Version{model.SupportedVersion}, PublicKey: pub, ClientChallenge: make([]byte, cryptoutil.ChallengeSize),
	})})

	wrongSig := ed25519.Sign(otherPriv, hc.Session.Challenge)
	resp := Dispatch(hc, &Request{MessageID: 2, Type: MsgCheckIn, Body: wire.Marshal(&CheckInRequest{
		Challenge: hc.Session.Challenge, Signature: wrongSig,
	})})
	require.Equal(t, model.StatusInvalidSignature, resp.Status)
}

// VerifyIdentity is non-customer-role only.
func TestVerifyIdentityOnCustomerRoleYieldsBadRole(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleCustomer))
	hc.Session.SetStatus(model.StatusStarted)
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgVerifyIdentity, Body: wire.Marshal(&VerifyIdentityRequest{IdentityID: "whatever", Signature: make([]byte, 64)})})
	require.Equal(t, model.StatusBadRole, resp.Status)
}

func TestCheckInRejectedOnNonCustomerRole(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleNonCustomer))
	resp := Dispatch(hc, &Request{MessageID: 1, Type: MsgCheckIn, Body: wire.Marshal(&CheckInRequest{Challenge: make([]byte, 32), Signature: make([]byte, 64)})})
	require.Equal(t, model.StatusBadRole, resp.Status)
}

func TestHostingRegisterQuotaExceeded(t *testing.T) {
	hc, _ := newTestHandlerContext(t, NewRoleSet(model.RoleNonCustomer))
	hc.MaxHostedIdentities = 1
	pub1, priv1, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	Dispatch(hc, &Request{MessageID: 1, Type: MsgStartConversation, Body: wire.Marshal(&StartConversationRequest{
		Versions: []model.Version{model.SupportedVersion}, PublicKey: pub1, ClientChallenge: make([]byte, cryptoutil.ChallengeSize),
	})})
	sig1 := ed25519.Sign(priv1, hc.Session.Challenge)
	resp1 := Dispatch(hc, &Request{MessageID: 2, Type: MsgHostingRegister, Body: wire.Marshal(&HostingRegisterRequest{ContractType: "person", Signature: sig1})})
	require.Equal(t, model.StatusOk, resp1.Status)

	hc2, _ := newTestHandlerContext(t, NewRoleSet(model.RoleNonCustomer))
	hc2.Store = hc.Store
	hc2.MaxHostedIdentities = 1
	pub2, priv2, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	Dispatch(hc2, &Request{MessageID: 1, Type: MsgStartConversation, Body: wire.Marshal(&StartConversationRequest{
		Versions: []model.Version{model.SupportedVersion}, PublicKey: pub2, ClientChallenge: make([]byte, cryptoutil.ChallengeSize),
	})})
	sig2 := ed25519.Sign(priv2, hc2.Session.Challenge)
	resp2 := Dispatch(hc2, &Request{MessageID: 2, Type: MsgHostingRegister, Body: wire.Marshal(&HostingRegisterRequest{ContractType: "person", Signature: sig2})})
	require.Equal(t, model.StatusQuotaExceeded, resp2.Status)
}
