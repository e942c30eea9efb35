package circuit

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifierCloneIsDeep(t *testing.T) {
	require := require.New(t)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	id := NewIntroServiceIdentifier(pub, pub)
	clone := id.Clone()

	clone.ServiceIdentity[0] ^= 0xff
	require.NotEqual([]byte(id.ServiceIdentity), []byte(clone.ServiceIdentity))
}

func TestRegistryRegisterLookupUnregister(t *testing.T) {
	require := require.New(t)

	reg := NewRegistry()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	id := NewIntroServiceIdentifier(pub, pub)
	h := reg.Register(id)
	require.False(h.IsZero())

	got, err := reg.Lookup(h)
	require.NoError(err)
	require.Equal(KindIntroService, got.Kind)
	require.Equal(1, reg.Len())

	reg.Unregister(h)
	require.Equal(0, reg.Len())

	_, err = reg.Lookup(h)
	require.Error(err)
}

func TestRegistryUnregisterUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()
	reg.Unregister(Handle{})
}

func TestRegistryCountKind(t *testing.T) {
	require := require.New(t)
	reg := NewRegistry()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	reg.Register(NewIntroServiceIdentifier(pub, pub))
	reg.Register(NewIntroServiceIdentifier(pub, pub))
	var cookie [RendezvousCookieLen]byte
	reg.Register(NewRendezvousServiceIdentifier(pub, cookie))

	require.Equal(2, reg.CountKind(KindIntroService))
	require.Equal(1, reg.CountKind(KindRendezvousService))
	require.Equal(0, reg.CountKind(KindIntroClient))
}

func TestPurposeStringers(t *testing.T) {
	require := require.New(t)
	require.Equal("S_ESTABLISH_INTRO", SEstablishIntro.String())
	require.Equal("S_INTRO", SIntro.String())
	require.Equal("S_CONNECT_REND", SConnectRend.String())
	require.Equal("S_REND_JOINED", SRendJoined.String())
	require.Equal("C_INTRODUCING", CIntroducing.String())
	require.Equal("C_REND_JOINED", CRendJoined.String())
}
