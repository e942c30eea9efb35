package cell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitLineRoundTrip(t *testing.T) {
	require := require.New(t)

	var hashed [32]byte
	for i := range hashed {
		hashed[i] = byte(i)
	}
	commitB64 := EncodeCommitBlob(hashed, 1000)

	var rn [32]byte
	for i := range rn {
		rn[i] = byte(i + 1)
	}
	revealB64 := EncodeRevealBlob(1000, rn)

	line := "sha3-256 ed25519idB64 ABCDEF0123456789ABCDEF0123456789ABCDEF01 " + commitB64 + " " + revealB64
	c, err := ParseCommitLine(line)
	require.NoError(err)
	require.Equal(AlgSHA3256, c.Alg)
	require.Equal(uint64(1000), c.Timestamp)
	require.Equal(hashed, c.HashedRevl)
	require.True(c.HasReveal)
	require.Equal(uint64(1000), c.RevealTS)
	require.Equal(rn, c.RevealRand)
	require.Equal(line, c.String())
}

const testRSAFpr = "ABCDEF0123456789ABCDEF0123456789ABCDEF01"

func TestCommitLineWithoutReveal(t *testing.T) {
	require := require.New(t)

	var hashed [32]byte
	commitB64 := EncodeCommitBlob(hashed, 5)
	line := "sha3-256 idb64 " + testRSAFpr + " " + commitB64
	c, err := ParseCommitLine(line)
	require.NoError(err)
	require.False(c.HasReveal)
	require.Equal(line, c.String())
}

func TestCommitLineWithKeyword(t *testing.T) {
	require := require.New(t)

	var hashed [32]byte
	commitB64 := EncodeCommitBlob(hashed, 5)
	line := "shared-rand-commit sha3-256 idb64 " + testRSAFpr + " " + commitB64 + " " + EncodeRevealBlob(5, [32]byte{})
	c, err := ParseCommitLine(line)
	require.NoError(err)
	require.Equal("sha3-256", c.Alg)
}

func TestParseCommitLineRejectsBadRSAFingerprint(t *testing.T) {
	require := require.New(t)
	var hashed [32]byte
	commitB64 := EncodeCommitBlob(hashed, 5)
	_, err := ParseCommitLine("sha3-256 idb64 not-hex " + commitB64)
	require.ErrorIs(err, ErrInvalid)
}

func TestParseCommitLineRejectsWrongAlg(t *testing.T) {
	require := require.New(t)
	var hashed [32]byte
	commitB64 := EncodeCommitBlob(hashed, 5)
	_, err := ParseCommitLine("sha1 idb64 fpr " + commitB64)
	require.ErrorIs(err, ErrInvalid)
}

func TestParseCommitLineRejectsBadTokenCount(t *testing.T) {
	require := require.New(t)
	_, err := ParseCommitLine("sha3-256 onlytwo")
	require.ErrorIs(err, ErrInvalid)
}

func TestParseCommitLineRejectsMalformedBlob(t *testing.T) {
	require := require.New(t)
	_, err := ParseCommitLine("sha3-256 idb64 fpr " + "not-base64!!")
	require.ErrorIs(err, ErrInvalid)
}

func TestSRVLineRoundTrip(t *testing.T) {
	require := require.New(t)

	var val [32]byte
	for i := range val {
		val[i] = byte(0x11)
	}
	s := &SRVLine{NumReveals: 3, Value: val}
	line := s.String()

	parsed, err := ParseSRVLine(line)
	require.NoError(err)
	require.Equal(s.NumReveals, parsed.NumReveals)
	require.Equal(s.Value, parsed.Value)
}

func TestParseSRVLineRejectsNegative(t *testing.T) {
	require := require.New(t)
	_, err := ParseSRVLine("-1 " + hexEncode(make([]byte, 32)))
	require.ErrorIs(err, ErrInvalid)
}

func TestParseSRVLineRejectsShortValue(t *testing.T) {
	require := require.New(t)
	_, err := ParseSRVLine("3 aabb")
	require.ErrorIs(err, ErrInvalid)
}
