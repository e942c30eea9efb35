package hsident

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	"golang.org/x/crypto/sha3"
)

// DefaultNumReplicas and DefaultSpreadStore are the ring-walk parameters
// used by ResponsibleHSDirs when the caller doesn't override them.
const (
	DefaultNumReplicas = 2
	DefaultSpreadStore = 3
)

// HSDirIndex computes a node's position on the HSDir ring for the given
// SRV and time period: SHA3-256("node-idx" || node_ed25519_id || srv ||
// u64_be(period_num) || u64_be(period_length_seconds)).
func HSDirIndex(nodeIdentity ed25519.PublicKey, srv [32]byte, periodNum, periodLengthSeconds uint64) [32]byte {
	buf := make([]byte, 0, len("node-idx")+len(nodeIdentity)+32+16)
	buf = append(buf, "node-idx"...)
	buf = append(buf, nodeIdentity...)
	buf = append(buf, srv[:]...)
	buf = appendU64(buf, periodNum)
	buf = appendU64(buf, periodLengthSeconds)
	return sha3.Sum256(buf)
}

// HSIndex computes where a service's descriptor for the given replica
// number should be stored: SHA3-256("store-at-idx" || blinded_pk ||
// u64_be(replica) || u64_be(period_length_seconds) || u64_be(period_num)).
func HSIndex(blindedPK ed25519.PublicKey, replica, periodLengthSeconds, periodNum uint64) [32]byte {
	buf := make([]byte, 0, len("store-at-idx")+len(blindedPK)+24)
	buf = append(buf, "store-at-idx"...)
	buf = append(buf, blindedPK...)
	buf = appendU64(buf, replica)
	buf = appendU64(buf, periodLengthSeconds)
	buf = appendU64(buf, periodNum)
	return sha3.Sum256(buf)
}

// RingNode is a consensus node's identity together with its precomputed
// HSDir ring position.
type RingNode struct {
	Identity ed25519.PublicKey
	Index    [32]byte
}

// SortRing orders nodes by ascending hsdir_index, the ring order that
// ResponsibleHSDirs walks clockwise from each hs_index(r).
func SortRing(nodes []RingNode) []RingNode {
	out := make([]RingNode, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Index[:], out[j].Index[:]) < 0
	})
	return out
}

// ResponsibleHSDirs walks the sorted ring clockwise from hs_index(r) for
// each replica 1..numReplicas, collecting up to spreadStore unique nodes
// per replica, and returns the union in the order collected. ring must
// already be sorted by SortRing.
func ResponsibleHSDirs(ring []RingNode, blindedPK ed25519.PublicKey, periodNum, periodLengthSeconds uint64, numReplicas, spreadStore int) []RingNode {
	if len(ring) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []RingNode

	for r := uint64(1); r <= uint64(numReplicas); r++ {
		target := HSIndex(blindedPK, r, periodLengthSeconds, periodNum)
		start := sort.Search(len(ring), func(i int) bool {
			return bytes.Compare(ring[i].Index[:], target[:]) >= 0
		})

		collected := 0
		for i := 0; i < len(ring) && collected < spreadStore; i++ {
			node := ring[(start+i)%len(ring)]
			key := string(node.Identity)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, node)
			collected++
		}
	}
	return out
}
