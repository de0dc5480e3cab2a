package protocol

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/marmos91/idhost/internal/cryptoutil"
	"github.com/marmos91/idhost/internal/model"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/wire"
)

func handlePing(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req PingRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}
	hc.Session.Touch()
	return model.StatusOk, "", wire.Marshal(&PingResponse{}), nil
}

func handleListRoles(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	resp := &ListRolesResponse{Roles: hc.Roles.Slice()}
	return model.StatusOk, "", wire.Marshal(resp), nil
}

func handleGetIdentityInformation(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req GetIdentityInformationRequest
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
	if !row.Initialized() {
		return model.StatusUninitialized, "", nil, nil
	}

	_, online := hc.Registry.Lookup(req.IdentityID)

	resp := &GetIdentityInformationResponse{
		IsHosted:    row.Hosted(),
		IsOnline:    online,
		Name:        row.Name,
		Type:        row.Type,
		HasLocation: row.HasLocation,
		Latitude:    float64(row.LatitudeE6) / 1e6,
		Longitude:   float64(row.LongitudeE6) / 1e6,
		ExtraData:   row.ExtraData,
		HomeNodeID:  row.HomeNodeID,
	}
	if row.ProfileImageToken != nil {
		resp.ProfileImageToken = *row.ProfileImageToken
	}
	if row.ThumbnailImageToken != nil {
		resp.ThumbnailImageToken = *row.ThumbnailImageToken
	}
	return model.StatusOk, "", wire.Marshal(resp), nil
}

func handleProfileStats(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	hosted, err := hc.Store.CountHosted(hc.Ctx)
	if err != nil {
		return 0, "", nil, err
	}
	connections, _ := hc.Registry.Count()
	resp := &ProfileStatsResponse{
		HostedCount: uint32(hosted),
		OnlineCount: uint32(connections),
	}
	return model.StatusOk, "", wire.Marshal(resp), nil
}

func handleGetIdentityRelationships(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req GetIdentityRelationshipsRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	rows, err := hc.Store.ListRelations(hc.Ctx, req.IdentityID)
	if err != nil {
		return 0, "", nil, err
	}

	resp := &GetIdentityRelationshipsResponse{}
	for _, row := range rows {
		resp.Relations = append(resp.Relations, RelationInfo{
			ApplicationID: row.ApplicationID,
			CardID:        row.CardID,
			Type:          row.Type,
			ValidFrom:     row.ValidFrom,
			ValidTo:       row.ValidTo,
		})
	}
	return model.StatusOk, "", wire.Marshal(resp), nil
}

// cardSignableBytes reproduces a relationship card's wire encoding with its
// CardID field zeroed, the canonical form cryptoutil.CardID hashes
// (CardId = SHA-256 of the card with a zeroed CardId).
func cardSignableBytes(req *AddRelatedIdentityRequest) []byte {
	w := wire.NewWriter()
	w.PutString(req.ApplicationID)
	w.PutFixed(make([]byte, cryptoutil.CardIDSize))
	w.PutBytes(req.IssuerPublicKey)
	w.PutBytes(req.RecipientPublicKey)
	w.PutString(req.Type)
	w.PutUint64(uint64(req.ValidFrom.Unix()))
	w.PutUint64(uint64(req.ValidTo.Unix()))
	return w.Bytes()
}

// verifyRelationshipCard checks a related-identity card before it is
// ever stored: CardId matches the hash
// of its own zeroed-CardId encoding, IssuerSignature covers that CardId,
// RecipientSignature covers the application bytes and comes from the
// session's own identity, and the validity window is non-empty.
func verifyRelationshipCard(hc *HandlerContext, req *AddRelatedIdentityRequest) (model.StatusCode, string) {
	if req.ValidFrom.After(req.ValidTo) {
		return model.StatusInvalidValue, "valid_from"
	}
	if !bytes.Equal(req.RecipientPublicKey, hc.Session.PeerPublicKey) {
		return model.StatusInvalidValue, "recipient_public_key"
	}

	cardID := cryptoutil.CardID(cardSignableBytes(req))
	if req.CardID != hex.EncodeToString(cardID[:]) {
		return model.StatusInvalidSignature, "card_id"
	}
	if err := cryptoutil.Verify(req.IssuerPublicKey, cardID[:], req.IssuerSignature); err != nil {
		return model.StatusInvalidSignature, "issuer_signature"
	}
	if err := cryptoutil.Verify(req.RecipientPublicKey, []byte(req.ApplicationID), req.RecipientSignature); err != nil {
		return model.StatusInvalidSignature, "recipient_signature"
	}
	return model.StatusOk, ""
}

func handleAddRelatedIdentity(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req AddRelatedIdentityRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	if status, details := verifyRelationshipCard(hc, &req); status != model.StatusOk {
		return status, details, nil, nil
	}

	row := &store.RelatedIdentity{
		IdentityID:         hc.Session.PeerIdentityID,
		ApplicationID:      req.ApplicationID,
		CardID:             req.CardID,
		IssuerPublicKey:    req.IssuerPublicKey,
		IssuerSignature:    req.IssuerSignature,
		RecipientPublicKey: req.RecipientPublicKey,
		RecipientSignature: req.RecipientSignature,
		Type:               req.Type,
		ValidFrom:          req.ValidFrom,
		ValidTo:            req.ValidTo,
	}

	err := hc.Store.AddRelation(hc.Ctx, row, hc.MaxIdentityRelations)
	switch {
	case errors.Is(err, store.ErrQuotaExceeded):
		return model.StatusQuotaExceeded, "", nil, nil
	case errors.Is(err, store.ErrAlreadyExists):
		return model.StatusAlreadyExists, "", nil, nil
	case err != nil:
		return 0, "", nil, err
	}
	return model.StatusOk, "", wire.Marshal(&AddRelatedIdentityResponse{}), nil
}

func handleRemoveRelatedIdentity(hc *HandlerContext, body []byte) (model.StatusCode, string, []byte, error) {
	var req RemoveRelatedIdentityRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return model.StatusProtocolViolation, "", nil, nil
	}

	err := hc.Store.RemoveRelation(hc.Ctx, hc.Session.PeerIdentityID, req.ApplicationID)
	if errors.Is(err, store.ErrNotFound) {
		return model.StatusNotFound, "", nil, nil
	}
	if err != nil {
		return 0, "", nil, err
	}
	return model.StatusOk, "", wire.Marshal(&RemoveRelatedIdentityResponse{}), nil
}
