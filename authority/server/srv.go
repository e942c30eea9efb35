package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/opaquenet/hsauth/cell"
)

// ProtoVersion is the shared-random protocol version byte mixed into the
// SRV derivation message, per the merged (post prop-250-draft) design (see
// DESIGN.md open question 1).
const ProtoVersion = 1

// minValidReveals is the protocol floor below which a run falls back to the
// disaster SRV.
const minValidReveals = 3

const disasterLabel = "shared-random-disaster"

// eligibleReveal is one commit from C: a commit with both a valid commit
// blob and a valid matching reveal, keyed by the contributing authority's
// Ed25519 base64 identity.
type eligibleReveal struct {
	ed25519B64 string
	revealRaw  []byte // timestamp(8) || random_number(32), decoded
}

// eligibleC filters commits to the set C used by the SRV computation:
// exactly those with HasReveal set and a reveal that verifies against the
// commit's hashed_reveal.
func eligibleC(commits []*cell.CommitLine) []eligibleReveal {
	out := make([]eligibleReveal, 0, len(commits))
	for _, c := range commits {
		if !c.HasReveal {
			continue
		}
		if !verifyCommitAndReveal(c) {
			continue
		}
		raw := make([]byte, 0, 40)
		raw = appendU64(raw, c.RevealTS)
		raw = append(raw, c.RevealRand[:]...)
		out = append(out, eligibleReveal{ed25519B64: c.Ed25519ID, revealRaw: raw})
	}
	return out
}

// verifyCommitAndReveal checks that H(reveal_encode(rn, ts)) equals the
// commit's stored hashed_reveal and that the two timestamps agree.
func verifyCommitAndReveal(c *cell.CommitLine) bool {
	if c.Timestamp != c.RevealTS {
		return false
	}
	revealEncoded := make([]byte, 0, 40)
	revealEncoded = appendU64(revealEncoded, c.RevealTS)
	revealEncoded = append(revealEncoded, c.RevealRand[:]...)
	got := sha3.Sum256(revealEncoded)
	return hmac.Equal(got[:], c.HashedRevl[:])
}

// Sorting and concatenation key: commits are sorted lexicographically
// ascending by the authority's Ed25519 base64 fingerprint and then
// concatenated as "auth_fingerprint || encoded_reveal". Tor-native
// "fpr_A" notation normally denotes the RSA identity fingerprint, but
// eligibleReveal is keyed by Ed25519 identity here since that is the
// field actually used as both the sort key and the concatenation input.

// ComputeSRV implements the SRV computation: given the previous SRV
// value and the commits accepted for a completed run, it returns the new
// SRV, the number of reveals that contributed, and whether the result is
// "fresh" (computed from real reveals) as opposed to the disaster fallback.
func ComputeSRV(previousSRV [32]byte, commits []*cell.CommitLine) (srv [32]byte, numReveals uint64, fresh bool) {
	c := eligibleC(commits)
	if len(c) < minValidReveals {
		mac := hmac.New(sha256.New, previousSRV[:])
		mac.Write([]byte(disasterLabel))
		copy(srv[:], mac.Sum(nil))
		return srv, uint64(len(c)), false
	}

	sort.Slice(c, func(i, j int) bool { return c[i].ed25519B64 < c[j].ed25519B64 })

	var buf []byte
	for _, e := range c {
		buf = append(buf, []byte(e.ed25519B64)...)
		buf = append(buf, e.revealRaw...)
	}
	hashedReveals := sha3.Sum256(buf)

	msg := make([]byte, 0, len("shared-random")+1+1+32+32)
	msg = append(msg, "shared-random"...)
	msg = append(msg, byte(len(c)))
	msg = append(msg, byte(ProtoVersion))
	msg = append(msg, previousSRV[:]...)
	msg = append(msg, make([]byte, 32)...)

	mac := hmac.New(sha256.New, hashedReveals[:])
	mac.Write(msg)
	copy(srv[:], mac.Sum(nil))
	return srv, uint64(len(c)), true
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
