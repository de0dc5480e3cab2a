// Package cryptoutil provides the Ed25519 signing, SHA-256 identity
// hashing, and secure random generation primitives used throughout the
// node. No cryptographic algorithm is implemented here; this package only
// wires the standard library primitives into the shapes the protocol
// needs (identity ids, card ids, challenges, signable byte sequences).
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
)

// IdentityIDSize is the length in bytes of an IdentityId: SHA-256 of the
// owner's Ed25519 public key.
const IdentityIDSize = sha256.Size

// CardIDSize is the length in bytes of a relationship card id.
const CardIDSize = sha256.Size

// PublicKeySize is the length in bytes of an Ed25519 public key.
const PublicKeySize = ed25519.PublicKeySize

// IdentityID derives the canonical IdentityId for a public key.
func IdentityID(publicKey []byte) ([IdentityIDSize]byte, error) {
	var id [IdentityIDSize]byte
	if len(publicKey) != PublicKeySize {
		return id, fmt.Errorf("cryptoutil: public key must be %d bytes, got %d", PublicKeySize, len(publicKey))
	}
	id = sha256.Sum256(publicKey)
	return id, nil
}

// CardID computes CardId = SHA-256(serialized card with CardId zeroed).
// Callers must pass the card's wire encoding with the CardId field already
// set to CardIDSize zero bytes.
func CardID(cardBytesWithZeroedID []byte) [CardIDSize]byte {
	return sha256.Sum256(cardBytesWithZeroedID)
}
