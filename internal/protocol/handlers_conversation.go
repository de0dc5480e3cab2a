package protocol

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"

	"github.com/marmos91/idhost/internal/cryptoutil"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/wire"
)

// handleStartConversation runs the challenge-issuing half of the
// status machine: None -> Started. The peer's chosen version is
// resolved by SelectVersion.
func handleStartConversation(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req StartConversationRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	if len(req.PublicKey) != cryptoutil.PublicKeySize {
		return model.StatusInvalidValue, "public_key", nil, nil
	}
	if len(req.ClientChallenge) != cryptoutil.ChallengeSize {
		return model.StatusInvalidValue, "client_challenge", nil, nil
	}

	selected, ok := SelectVersion(req.Versions)
	if !ok {
		return model.StatusUnsupported, "", nil, nil
	}

	challenge, err := cryptoutil.NewChallenge()
	if err != nil {
		return 0, "", nil, err
	}

	hc.Session.PeerPublicKey = ed25519.PublicKey(req.PublicKey)
	hc.Session.Challenge = challenge[:]
	hc.Session.SetStatus(model.StatusStarted)

	resp := &StartConversationResponse{
		ServerPublicKey: hc.ServerPublicKey,
		ServerChallenge: challenge[:],
		SelectedVersion: selected,
	}
	return model.StatusOk, "", wire.Marshal(resp), nil
}

// handleCheckIn runs Started -> Authenticated: the peer signs the
// server's challenge with its private key, proving ownership of the
// public key it presented at StartConversation.
func handleCheckIn(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req CheckInRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	if hc.Session.Challenge == nil || string(req.Challenge) != string(hc.Session.Challenge) {
		return model.StatusInvalidValue, "challenge", nil, nil
	}

	if err := cryptoutil.Verify(hc.Session.PeerPublicKey, req.Challenge, req.Signature); err != nil {
		return model.StatusInvalidSignature, "", nil, nil
	}

	id, err := cryptoutil.IdentityID(hc.Session.PeerPublicKey)
	if err != nil {
		return 0, "", nil, err
	}
	identityID := hex.EncodeToString(id[:])

	hc.Session.Authenticate(identityID, hc.Session.PeerPublicKey)
	hc.Registry.CheckIn(identityID, hc.Session)

	return model.StatusOk, "", wire.Marshal(&CheckInResponse{}), nil
}

// handleVerifyIdentity runs Started -> Verified for a peer that only
// needs to prove identity ownership without hosting a contract on this
// connection (e.g. a non-customer role confirming a caller's identity).
func handleVerifyIdentity(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req VerifyIdentityRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	row, err := hc.Store.GetByID(hc.Ctx, req.IdentityID)
	if errors.Is(err, store.ErrNotFound) {
		return model.StatusNotFound, "", nil, nil
	}
	if err != nil {
		return 0, "", nil, err
	}

	if hc.Session.Challenge == nil {
		return model.StatusInvalidValue, "challenge", nil, nil
	}
	if err := cryptoutil.Verify(row.PublicKey, hc.Session.Challenge, req.Signature); err != nil {
		return model.StatusInvalidSignature, "", nil, nil
	}

	hc.Session.PeerIdentityID = req.IdentityID
	hc.Session.SetStatus(model.StatusVerified)
	return model.StatusOk, "", wire.Marshal(&VerifyIdentityResponse{}), nil
}

