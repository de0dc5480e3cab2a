package cryptoutil

import "crypto/rand"

// ChallengeSize is the length in bytes of an authentication challenge,
// issued in both directions.
const ChallengeSize = 32

// TokenSize is the length in bytes of a relay token.
const TokenSize = 16

// NewChallenge returns a cryptographically random 32-byte challenge.
func NewChallenge() ([ChallengeSize]byte, error) {
	var c [ChallengeSize]byte
	_, err := rand.Read(c[:])
	return c, err
}

// NewToken returns a cryptographically random 16-byte token, used for
// relay caller/callee tokens.
func NewToken() ([TokenSize]byte, error) {
	var t [TokenSize]byte
	_, err := rand.Read(t[:])
	return t, err
}
