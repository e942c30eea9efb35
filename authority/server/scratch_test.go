package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opaquenet/hsauth/cell"
)

func TestScratchStorePutAndCommitsRoundTrip(t *testing.T) {
	require := require.New(t)

	s, err := OpenScratchStore(t.TempDir())
	require.NoError(err)
	defer s.Close()

	c := &cell.CommitLine{
		Alg:       cell.AlgSHA3256,
		Ed25519ID: "id",
		RSAFpr:    "fpr1",
		CommitB64: "commit",
	}
	require.NoError(s.PutCommit(c))

	got, err := s.Commits()
	require.NoError(err)
	require.Len(got, 1)
	require.Equal(c.RSAFpr, got[0].RSAFpr)
	require.Equal(c.CommitB64, got[0].CommitB64)
}

func TestScratchStorePutOverwritesSameFingerprint(t *testing.T) {
	require := require.New(t)

	s, err := OpenScratchStore(t.TempDir())
	require.NoError(err)
	defer s.Close()

	require.NoError(s.PutCommit(&cell.CommitLine{RSAFpr: "fpr1", CommitB64: "first"}))
	require.NoError(s.PutCommit(&cell.CommitLine{RSAFpr: "fpr1", CommitB64: "second"}))

	got, err := s.Commits()
	require.NoError(err)
	require.Len(got, 1)
	require.Equal("second", got[0].CommitB64)
}

func TestScratchStoreResetClearsCommits(t *testing.T) {
	require := require.New(t)

	s, err := OpenScratchStore(t.TempDir())
	require.NoError(err)
	defer s.Close()

	require.NoError(s.PutCommit(&cell.CommitLine{RSAFpr: "fpr1", CommitB64: "commit"}))
	require.NoError(s.Reset())

	got, err := s.Commits()
	require.NoError(err)
	require.Empty(got)
}

func TestScratchStoreNilReceiverIsNoOp(t *testing.T) {
	require := require.New(t)

	var s *ScratchStore
	require.NoError(s.PutCommit(&cell.CommitLine{RSAFpr: "fpr1"}))
	got, err := s.Commits()
	require.NoError(err)
	require.Nil(got)
	require.NoError(s.Reset())
	require.NoError(s.Close())
}
