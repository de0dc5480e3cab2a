package cryptoutil

import (
	"crypto/ed25519"
	"errors"
)

// ErrInvalidSignature is returned by Verify when the signature does not
// match the given public key and message.
var ErrInvalidSignature = errors.New("cryptoutil: invalid signature")

// ErrInvalidPublicKey is returned when a public key is not the expected
// Ed25519 length.
var ErrInvalidPublicKey = errors.New("cryptoutil: public key has wrong length")

// GenerateKeyPair creates a fresh Ed25519 key pair using crypto/rand.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// Sign signs message with privateKey.
func Sign(privateKey ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}

// Verify checks that signature over message was produced by the holder of
// publicKey. It never panics on malformed input, returning
// ErrInvalidPublicKey or ErrInvalidSignature instead.
func Verify(publicKey []byte, message, signature []byte) error {
	if len(publicKey) != PublicKeySize {
		return ErrInvalidPublicKey
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), message, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// SignableBytes re-serializes a signable message body with its
// signature field excluded. encode is supplied by the caller
// (the message type's own Encode method run against a copy with the
// signature field cleared) so this package stays independent of any
// particular message schema.
func SignableBytes(encode func() []byte) []byte {
	return encode()
}
