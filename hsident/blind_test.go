package hsident

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlindPublicAndPrivateKeysAgree(t *testing.T) {
	require := require.New(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	const period, periodLenSec = 16903, 86400

	blindedPub, err := BlindPublicKey(pub, period, periodLenSec)
	require.NoError(err)

	bpk, err := BlindPrivateKey(priv, period, periodLenSec)
	require.NoError(err)

	require.Equal([]byte(blindedPub), []byte(bpk.PublicKey()))
}

func TestBlindPrivateKeySignVerifies(t *testing.T) {
	require := require.New(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	_ = pub

	bpk, err := BlindPrivateKey(priv, 16903, 86400)
	require.NoError(err)

	msg := []byte("descriptor-signing-cert")
	sig := bpk.Sign(msg)
	require.True(ed25519.Verify(bpk.PublicKey(), msg, sig))

	sig[0] ^= 0xff
	require.False(ed25519.Verify(bpk.PublicKey(), msg, sig))
}

func TestBlindPublicKeyDiffersAcrossPeriods(t *testing.T) {
	require := require.New(t)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	b1, err := BlindPublicKey(pub, 1, 86400)
	require.NoError(err)
	b2, err := BlindPublicKey(pub, 2, 86400)
	require.NoError(err)
	require.NotEqual([]byte(b1), []byte(b2))
}

func TestBlindPublicKeyRejectsBadLength(t *testing.T) {
	require := require.New(t)
	_, err := BlindPublicKey(make(ed25519.PublicKey, 10), 1, 86400)
	require.Error(err)
}

func TestSubcredentialDependsOnBothKeys(t *testing.T) {
	require := require.New(t)

	identity, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	blinded1, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	blinded2, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	sc1 := Subcredential(identity, blinded1)
	sc2 := Subcredential(identity, blinded2)
	require.NotEqual(sc1, sc2)
}
