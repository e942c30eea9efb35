package hsident

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeOnionAddressMatchesKnownVector(t *testing.T) {
	require := require.New(t)

	pubkey := bytes.Repeat([]byte{0x42}, ed25519.PublicKeySize)
	addr, err := EncodeOnionAddress(pubkey)
	require.NoError(err)
	require.Equal("ijbeeqscijbeeqscijbeeqscijbeeqscijbeeqscijbeeqscijbezhid.onion", addr)
}

func TestOnionAddressRoundTrip(t *testing.T) {
	require := require.New(t)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	addr, err := EncodeOnionAddress(pub)
	require.NoError(err)

	got, err := DecodeOnionAddress(addr)
	require.NoError(err)
	require.Equal([]byte(pub), []byte(got))
}

func TestDecodeOnionAddressRejectsBadChecksum(t *testing.T) {
	require := require.New(t)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	addr, err := EncodeOnionAddress(pub)
	require.NoError(err)

	corrupted := []byte(addr)
	corrupted[0] = 'a'
	if corrupted[0] == addr[0] {
		corrupted[0] = 'b'
	}
	_, err = DecodeOnionAddress(string(corrupted))
	require.Error(err)
}

func TestDecodeOnionAddressRejectsWrongLength(t *testing.T) {
	require := require.New(t)
	_, err := DecodeOnionAddress("aaaa.onion")
	require.Error(err)
}
