package server

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/core/errs"
)

// Phase is the two-valued protocol phase within a run.
type Phase int

const (
	PhaseCommit Phase = iota
	PhaseReveal
)

func (p Phase) String() string {
	if p == PhaseReveal {
		return "reveal"
	}
	return "commit"
}

// RunState is the per-protocol-run commit/reveal bookkeeping: the
// authority's own commit and every peer commit accepted so far this run,
// keyed by RSA fingerprint so each authority has at most one commit per run:
// a later, conflicting commit from the same authority is refused and the
// earlier one kept.
type RunState struct {
	mu        sync.Mutex
	ownCommit *cell.CommitLine
	commits   map[string]*cell.CommitLine
}

// NewRunState returns an empty RunState for a fresh protocol run.
func NewRunState() *RunState {
	return &RunState{commits: make(map[string]*cell.CommitLine)}
}

// OwnCommit returns the authority's own commit for this run, or nil if one
// has not been generated yet.
func (r *RunState) OwnCommit() *cell.CommitLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownCommit
}

// GenerateOwnCommit generates this authority's commit for the run if it
// doesn't have one yet: a uniform random 32-byte RN, TS = validAfter,
// hashed_reveal = H(reveal_encode(RN, TS)).
func (r *RunState) GenerateOwnCommit(ed25519ID, rsaFpr string, validAfter uint64) (*cell.CommitLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownCommit != nil {
		return r.ownCommit, nil
	}

	var rn [32]byte
	if _, err := io.ReadFull(rand.Reader, rn[:]); err != nil {
		return nil, errs.Wrap(errs.Transient, "GenerateOwnCommit", err)
	}

	revealB64 := cell.EncodeRevealBlob(validAfter, rn)
	revealRaw, _ := base64.StdEncoding.DecodeString(revealB64)
	hashedReveal := sha3.Sum256(revealRaw)
	commitB64 := cell.EncodeCommitBlob(hashedReveal, validAfter)

	c := &cell.CommitLine{
		Alg:        cell.AlgSHA3256,
		Ed25519ID:  ed25519ID,
		RSAFpr:     rsaFpr,
		CommitB64:  commitB64,
		Timestamp:  validAfter,
		HashedRevl: hashedReveal,
	}
	r.ownCommit = c
	r.commits[rsaFpr] = c
	return c, nil
}

// AttachOwnReveal adds the reveal half to the run's own commit at the
// commit→reveal boundary.
func (r *RunState) AttachOwnReveal(rn [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownCommit == nil {
		return
	}
	r.ownCommit.RevealB64 = cell.EncodeRevealBlob(r.ownCommit.Timestamp, rn)
	r.ownCommit.HasReveal = true
	r.ownCommit.RevealTS = r.ownCommit.Timestamp
	r.ownCommit.RevealRand = rn
}

// Commits returns a snapshot of all commits accepted this run, in no
// particular order (callers that need a deterministic order, like
// ComputeSRV, sort at the point of use).
func (r *RunState) Commits() []*cell.CommitLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*cell.CommitLine, 0, len(r.commits))
	for _, c := range r.commits {
		out = append(out, c)
	}
	return out
}

// IngestPeerCommit applies the admission rules for a single parsed commit
// line arriving from a peer's vote, in either phase of the run. It returns a
// *errs.Error of kind Protocol for any rejection; ingesting the same
// (structurally identical) commit twice is idempotent and returns nil both
// times.
func (r *RunState) IngestPeerCommit(c *cell.CommitLine, phase Phase) error {
	if c.Alg != cell.AlgSHA3256 {
		return errs.New(errs.Protocol, "IngestPeerCommit", "unsupported digest algorithm")
	}
	if raw, err := base64.StdEncoding.DecodeString(c.Ed25519ID); err != nil || len(raw) != 32 {
		return errs.New(errs.Protocol, "IngestPeerCommit", "unparseable ed25519 identity")
	}
	if c.HasReveal && phase == PhaseCommit {
		return errs.New(errs.Protocol, "IngestPeerCommit", "reveal attached during commit phase")
	}
	if c.HasReveal && !verifyCommitAndReveal(c) {
		return errs.New(errs.Protocol, "IngestPeerCommit", "commit/reveal verification failed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.commits[c.RSAFpr]
	if !ok {
		r.commits[c.RSAFpr] = c
		return nil
	}
	if commitLinesEqual(existing, c) {
		return nil // idempotent duplicate
	}
	if !existing.HasReveal && c.HasReveal && commitBlobsEqual(existing, c) {
		// Same commit, now arriving with its reveal attached: merge in
		// place rather than rejecting as a structural conflict.
		r.commits[c.RSAFpr] = c
		return nil
	}
	return errs.New(errs.Protocol, "IngestPeerCommit", "conflicting commit from same authority this run")
}

func commitBlobsEqual(a, b *cell.CommitLine) bool {
	return a.Alg == b.Alg && a.CommitB64 == b.CommitB64 && a.RSAFpr == b.RSAFpr
}

func commitLinesEqual(a, b *cell.CommitLine) bool {
	return commitBlobsEqual(a, b) && a.RevealB64 == b.RevealB64 && a.HasReveal == b.HasReveal
}
