package cell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRendezvous1RoundTrip(t *testing.T) {
	require := require.New(t)

	r := &Rendezvous1{HandshakeInfo: bytesOf(64, 0x33)}
	for i := range r.RendezvousCookie {
		r.RendezvousCookie[i] = byte(i)
	}

	encoded, err := EncodeRendezvous1(r)
	require.NoError(err)

	decoded, err := DecodeRendezvous1(encoded)
	require.NoError(err)
	require.Equal(r.RendezvousCookie, decoded.RendezvousCookie)
	require.Equal(r.HandshakeInfo, decoded.HandshakeInfo)
}

func TestRendezvous1RejectsTruncated(t *testing.T) {
	require := require.New(t)
	_, err := DecodeRendezvous1(bytesOf(RendezvousCookieLen-1, 0))
	require.ErrorIs(err, ErrTruncated)
}

func TestRendezvous2RoundTrip(t *testing.T) {
	require := require.New(t)

	r := &Rendezvous2{HandshakeInfo: bytesOf(64, 0x44)}
	encoded, err := EncodeRendezvous2(r)
	require.NoError(err)

	decoded, err := DecodeRendezvous2(encoded)
	require.NoError(err)
	require.Equal(r.HandshakeInfo, decoded.HandshakeInfo)
}
