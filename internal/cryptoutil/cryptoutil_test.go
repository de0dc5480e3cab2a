package cryptoutil

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityIDIsDeterministic(t *testing.T) {
	pub, _, err := GenerateKeyPair()
	require.NoError(t, err)

	id1, err := IdentityID(pub)
	require.NoError(t, err)
	id2, err := IdentityID(pub)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, sha256.Sum256(pub), id1)
}

func TestIdentityIDRejectsWrongLength(t *testing.T) {
	_, err := IdentityID([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCardIDMatchesSHA256OfZeroedCard(t *testing.T) {
	fakeCard := append([]byte("issuer-pubkey-app-bytes"), make([]byte, CardIDSize)...)
	want := sha256.Sum256(fakeCard)
	got := CardID(fakeCard)
	assert.Equal(t, want, got)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	message := []byte("hosting contract bytes")
	sig := Sign(priv, message)

	require.NoError(t, Verify(pub, message, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sig := Sign(priv, []byte("original"))
	err = Verify(pub, []byte("tampered"), sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsWrongKeyLength(t *testing.T) {
	err := Verify([]byte{1, 2, 3}, []byte("msg"), []byte("sig"))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestNewChallengeIsRandomAndCorrectLength(t *testing.T) {
	c1, err := NewChallenge()
	require.NoError(t, err)
	c2, err := NewChallenge()
	require.NoError(t, err)

	assert.Len(t, c1, ChallengeSize)
	assert.NotEqual(t, c1, c2)
}

func TestNewTokenIsRandomAndCorrectLength(t *testing.T) {
	t1, err := NewToken()
	require.NoError(t, err)
	t2, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, t1, TokenSize)
	assert.NotEqual(t, t1, t2)
}
