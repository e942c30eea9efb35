package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/opaquenet/hsauth/cell"
)

func TestSRStateRoundTrip(t *testing.T) {
	require := require.New(t)

	var rn [32]byte
	rn[0] = 7
	revealB64 := cell.EncodeRevealBlob(42, rn)
	raw := append([]byte{0, 0, 0, 0, 0, 0, 0, 42}, rn[:]...)
	hashed := sha3.Sum256(raw)
	commitB64 := cell.EncodeCommitBlob(hashed, 42)

	c, err := parsePersistedCommit("sha3-256 " + testRSAFpr + " " + commitB64 + " " + revealB64)
	require.NoError(err)

	ps := &PersistedState{
		Version:    srStateVersion,
		ValidAfter: time.Now().UTC().Add(-time.Hour).Truncate(time.Second),
		ValidUntil: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
		Commits:    []*cell.CommitLine{c},
		PreviousSRV: &PersistedSRV{
			NumReveals: 3,
			Value:      [32]byte{0x11},
		},
		Extra: [][2]string{{"SomeFutureKey", "value here"}},
	}

	rendered := ps.Render()
	parsed, err := ParseSRState(rendered)
	require.NoError(err)

	require.Equal(ps.Version, parsed.Version)
	require.Equal(ps.ValidAfter, parsed.ValidAfter)
	require.Equal(ps.ValidUntil, parsed.ValidUntil)
	require.Len(parsed.Commits, 1)
	require.Equal(c.RSAFpr, parsed.Commits[0].RSAFpr)
	require.Equal(c.CommitB64, parsed.Commits[0].CommitB64)
	require.Equal(c.RevealB64, parsed.Commits[0].RevealB64)
	require.Equal(ps.PreviousSRV, parsed.PreviousSRV)
	require.Equal(ps.Extra, parsed.Extra)
}

func TestSRStateRejectsExpired(t *testing.T) {
	require := require.New(t)

	ps := &PersistedState{
		Version:    srStateVersion,
		ValidAfter: time.Now().UTC().Add(-2 * time.Hour),
		ValidUntil: time.Now().UTC().Add(-time.Hour),
	}
	_, err := ParseSRState(ps.Render())
	require.Error(err)
}

func TestSRStateRejectsBadOrdering(t *testing.T) {
	require := require.New(t)

	ps := &PersistedState{
		Version:    srStateVersion,
		ValidAfter: time.Now().UTC().Add(time.Hour),
		ValidUntil: time.Now().UTC().Add(-time.Hour),
	}
	_, err := ParseSRState(ps.Render())
	require.Error(err)
}

func TestSRStateRejectsFutureVersion(t *testing.T) {
	require := require.New(t)
	_, err := ParseSRState([]byte("Version 99\n"))
	require.Error(err)
}

func TestSRStateIgnoresCommentsAndBlankLines(t *testing.T) {
	require := require.New(t)
	ps, err := ParseSRState([]byte("# comment\n\nVersion 1\n\n"))
	require.NoError(err)
	require.Equal(1, ps.Version)
}

func TestWriteAndLoadSRStateRoundTrip(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	ps := &PersistedState{
		Version:    srStateVersion,
		ValidAfter: time.Now().UTC().Add(-time.Hour).Truncate(time.Second),
		ValidUntil: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(WriteSRState(dir, ps))

	loaded, err := LoadSRState(dir)
	require.NoError(err)
	require.Equal(ps.Version, loaded.Version)

	// Confirm the write went through a tmp file that got renamed away.
	_, err = os.Stat(filepath.Join(dir, srStateFilename+".tmp"))
	require.True(os.IsNotExist(err))
}
