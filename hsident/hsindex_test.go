package hsident

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func genRing(t *testing.T, n int) []RingNode {
	t.Helper()
	var srv [32]byte
	copy(srv[:], []byte("test-srv-value-000000000000000"))

	nodes := make([]RingNode, n)
	for i := 0; i < n; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		nodes[i] = RingNode{Identity: pub, Index: HSDirIndex(pub, srv, 1, 86400)}
	}
	return SortRing(nodes)
}

func TestSortRingIsAscending(t *testing.T) {
	require := require.New(t)
	ring := genRing(t, 20)
	for i := 1; i < len(ring); i++ {
		require.LessOrEqual(compareIndex(ring[i-1].Index, ring[i].Index), 0)
	}
}

func compareIndex(a, b [32]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func TestResponsibleHSDirsReturnsUniqueNodesWithinSpread(t *testing.T) {
	require := require.New(t)
	ring := genRing(t, 20)

	blinded, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	dirs := ResponsibleHSDirs(ring, blinded, 1, 86400, DefaultNumReplicas, DefaultSpreadStore)
	require.LessOrEqual(len(dirs), DefaultNumReplicas*DefaultSpreadStore)

	seen := make(map[string]bool)
	for _, d := range dirs {
		key := string(d.Identity)
		require.False(seen[key], "responsible HSDir set must not contain duplicates")
		seen[key] = true
	}
}

func TestResponsibleHSDirsWrapsAroundRing(t *testing.T) {
	require := require.New(t)
	ring := genRing(t, 3)

	blinded, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)

	dirs := ResponsibleHSDirs(ring, blinded, 1, 86400, 1, 10)
	require.Len(dirs, 3, "spreadStore larger than the ring should still only collect the ring's unique nodes")
}

func TestResponsibleHSDirsEmptyRing(t *testing.T) {
	require := require.New(t)
	blinded, _, err := ed25519.GenerateKey(nil)
	require.NoError(err)
	require.Nil(ResponsibleHSDirs(nil, blinded, 1, 86400, DefaultNumReplicas, DefaultSpreadStore))
}
