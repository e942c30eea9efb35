package cell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntroduce1RoundTrip(t *testing.T) {
	require := require.New(t)

	c := &Introduce1{
		AuthKeyType: AuthKeyEd25519,
		AuthKey:     bytesOf(32, 0x11),
		Extensions:  []Extension{{Type: 1, Data: []byte("z")}},
		Encrypted:   bytesOf(40, 0x22),
	}
	encoded, err := EncodeIntroduce1(c)
	require.NoError(err)

	decoded, err := DecodeIntroduce1(encoded)
	require.NoError(err)
	require.Equal(c.LegacyKeyID, decoded.LegacyKeyID)
	require.Equal(c.AuthKeyType, decoded.AuthKeyType)
	require.Equal(c.AuthKey, decoded.AuthKey)
	require.Equal(c.Extensions, decoded.Extensions)
	require.Equal(c.Encrypted, decoded.Encrypted)

	reencoded, err := EncodeIntroduce1(decoded)
	require.NoError(err)
	require.Equal(encoded, reencoded)
}

func TestIntroduce1PayloadRoundTrip(t *testing.T) {
	require := require.New(t)

	p := &Introduce1Payload{
		LinkSpecifiers: []Extension{{Type: 1, Data: []byte{1, 2, 3, 4}}},
	}
	for i := range p.RendezvousCookie {
		p.RendezvousCookie[i] = byte(i)
	}
	for i := range p.Subcredential {
		p.Subcredential[i] = byte(i + 1)
	}
	for i := range p.OnionKey {
		p.OnionKey[i] = byte(i + 2)
	}

	encoded, err := EncodeIntroduce1Payload(p)
	require.NoError(err)

	decoded, err := DecodeIntroduce1Payload(encoded)
	require.NoError(err)
	require.Equal(p.RendezvousCookie, decoded.RendezvousCookie)
	require.Equal(p.Subcredential, decoded.Subcredential)
	require.Equal(p.OnionKey, decoded.OnionKey)
	require.Equal(p.LinkSpecifiers, decoded.LinkSpecifiers)
}

func TestIntroduce1PayloadRejectsTruncated(t *testing.T) {
	require := require.New(t)
	_, err := DecodeIntroduce1Payload(bytesOf(10, 0))
	require.ErrorIs(err, ErrTruncated)
}

func TestIntroduce2IsIntroduce1Wire(t *testing.T) {
	require := require.New(t)

	c := &Introduce2{AuthKeyType: AuthKeyLegacy1, AuthKey: []byte("k")}
	encoded, err := EncodeIntroduce2(c)
	require.NoError(err)

	decoded, err := DecodeIntroduce2(encoded)
	require.NoError(err)
	require.Equal(c.AuthKeyType, decoded.AuthKeyType)
}
