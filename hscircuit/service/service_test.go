package service

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/circuit"
	"github.com/opaquenet/hsauth/hsident"
)

func newTestIntroPoint(t *testing.T, max uint64) *IntroPoint {
	t.Helper()
	require := require.New(t)

	keys, err := hsident.NewIntroPointKeys()
	require.NoError(err)

	ip, err := NewIntroPoint(BaseInfo{}, keys, max, time.Now().Add(time.Hour))
	require.NoError(err)
	return ip
}

func TestBuildEstablishIntroVerifies(t *testing.T) {
	require := require.New(t)

	ip := newTestIntroPoint(t, 100)
	circuitKeyMaterial := []byte("circuit key material shared with the relay")

	establish, err := ip.BuildEstablishIntro(circuitKeyMaterial, nil)
	require.NoError(err)

	prefix, err := cell.EncodeEstablishIntroPrefix(cell.AuthKeyEd25519, ip.Keys.AuthPublic, nil)
	require.NoError(err)

	encoded, err := cell.EncodeEstablishIntro(establish)
	require.NoError(err)

	decoded, err := cell.DecodeEstablishIntro(encoded)
	require.NoError(err)
	require.Equal(establish.HandshakeMAC, decoded.HandshakeMAC)
	require.Equal(decoded.MACData(), prefix)

	sigMsg := append([]byte(establishIntroSigPrefix), decoded.SigData()...)
	require.True(ed25519.Verify(ip.Keys.AuthPublic, sigMsg, decoded.Sig))
}

func TestAcceptIntroduce2EnforcesCapAndReplay(t *testing.T) {
	require := require.New(t)

	ip := newTestIntroPoint(t, 2)

	require.True(ip.AcceptIntroduce2([]byte("cell-1")))
	require.False(ip.AcceptIntroduce2([]byte("cell-1"))) // replay
	require.True(ip.AcceptIntroduce2([]byte("cell-2")))
	require.False(ip.AcceptIntroduce2([]byte("cell-3"))) // cap reached
	require.Equal(uint64(2), ip.IntroduceCount)
}

func TestIntroPointExpiresOnCapOrTime(t *testing.T) {
	require := require.New(t)

	now := time.Now()
	ip := newTestIntroPoint(t, 1)
	ip.TimeToExpire = now.Add(time.Hour)
	require.False(ip.Expired(now))

	ip.AcceptIntroduce2([]byte("only cell"))
	require.True(ip.Expired(now))

	ip2 := newTestIntroPoint(t, 100)
	ip2.TimeToExpire = now.Add(-time.Second)
	require.True(ip2.Expired(now))
}

func TestRegistryKeepsNewestClosesOlder(t *testing.T) {
	require := require.New(t)

	reg := NewRegistry()
	keys, err := hsident.NewIntroPointKeys()
	require.NoError(err)

	first, err := NewIntroPoint(BaseInfo{}, keys, 10, time.Now().Add(time.Hour))
	require.NoError(err)
	second, err := NewIntroPoint(BaseInfo{}, keys, 10, time.Now().Add(time.Hour))
	require.NoError(err)

	h1 := circuit.Handle{}
	reg.Register(first, h1)

	superseded := reg.Register(second, circuit.Handle{})
	// Both handles are the zero Handle here (test double), so assert via
	// Lookup that the newest entry won instead.
	got, _, ok := reg.Lookup(keys.AuthPublic)
	require.True(ok)
	require.Same(second, got)
	require.Equal(h1, superseded)
	require.Equal(1, reg.Len())
}

func TestManagerCircuitOpenedRespectsNumIntroPoints(t *testing.T) {
	require := require.New(t)

	m := NewManager(1, "test-service")
	ip1 := newTestIntroPoint(t, 10)
	ip2 := newTestIntroPoint(t, 10)

	require.True(m.CircuitOpened(ip1))
	h := circuit.Handle{}
	m.Established(ip1, h)
	require.Equal(1, m.Count())

	require.False(m.CircuitOpened(ip2))
}

func TestManagerAllowLaunchCapsPerPeriod(t *testing.T) {
	require := require.New(t)

	m := NewManager(100, "test-service")
	start := time.Now()

	for i := 0; i < MaxIntroCircsPerPeriod; i++ {
		require.True(m.AllowLaunch(start))
		m.RecordLaunch()
	}
	require.False(m.AllowLaunch(start))

	later := start.Add(IntroCircRetryPeriod)
	require.True(m.AllowLaunch(later))
}
