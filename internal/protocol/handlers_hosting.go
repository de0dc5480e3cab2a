package protocol

import (
	"encoding/hex"
	"errors"

	"github.com/marmos91/idhost/internal/cryptoutil"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/wire"
)

// handleHostingRegister creates or resurrects the hosting contract for
// the identity that just ran StartConversation on the non-customer
// role. The contract's signature is checked against the conversation
// challenge the same way CheckIn checks ownership; the contract's
// type/plan schema has no definition yet and is not enforced beyond
// the ContractType length check below.
func handleHostingRegister(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req HostingRegisterRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	// TODO: no plan/price schema exists upstream yet to validate against;
	// only shape (non-empty, bounded length) is checked here.
	if req.ContractType == "" || len(req.ContractType) > model.TypeMax {
		return model.StatusInvalidValue, "contract_type", nil, nil
	}

	if hc.Session.Challenge == nil {
		return model.StatusInvalidValue, "challenge", nil, nil
	}
	if err := cryptoutil.Verify(hc.Session.PeerPublicKey, hc.Session.Challenge, req.Signature); err != nil {
		return model.StatusInvalidSignature, "", nil, nil
	}

	idBytes, err := cryptoutil.IdentityID(hc.Session.PeerPublicKey)
	if err != nil {
		return 0, "", nil, err
	}
	identityID := hex.EncodeToString(idBytes[:])

	_, err = hc.Store.InsertOrResurrect(hc.Ctx, identityID, hc.Session.PeerPublicKey, req.ContractType, hc.MaxHostedIdentities)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return model.StatusAlreadyExists, "", nil, nil
	case errors.Is(err, store.ErrQuotaExceeded):
		return model.StatusQuotaExceeded, "", nil, nil
	case err != nil:
		return 0, "", nil, err
	}

	return model.StatusOk, "", wire.Marshal(&HostingRegisterResponse{IdentityID: identityID}), nil
}

// handleUpdateProfile applies the session's authenticated identity's
// patch to its hosted row (field rules are enforced inside
// internal/store.UpdateProfile).
func handleUpdateProfile(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req UpdateProfileRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	patch := store.ProfilePatch{
		Version:   req.SetVersion,
		Name:      req.SetName,
		Location:  req.SetLocation,
		ExtraData: req.SetExtra,
		Image:     req.SetImage,
	}

	_, err := hc.Store.UpdateProfile(hc.Ctx, hc.Session.PeerIdentityID, patch, hc.Images)
	var fieldErr *store.FieldError
	switch {
	case errors.As(err, &fieldErr):
		return model.StatusInvalidValue, fieldErr.Field, nil, nil
	case errors.Is(err, store.ErrNotFound):
		return model.StatusNotFound, "", nil, nil
	case err != nil:
		return 0, "", nil, err
	}

	return model.StatusOk, "", wire.Marshal(&UpdateProfileResponse{}), nil
}

// handleCancelHosting ends the authenticated identity's contract,
// optionally redirecting lookups to a new home node for
// model.CancelRedirectGrace.
func handleCancelHosting(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req CancelHostingRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	_, err := hc.Store.Cancel(hc.Ctx, hc.Session.PeerIdentityID, req.RedirectTo, hc.Images)
	if errors.Is(err, store.ErrNotFound) {
		return model.StatusNotFound, "", nil, nil
	}
	if err != nil {
		return 0, "", nil, err
	}

	return model.StatusOk, "", wire.Marshal(&CancelHostingResponse{}), nil
}
