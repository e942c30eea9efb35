// state.go - hsauth voting authority server state.
// Copyright (C) 2017, 2018  Yawning Angel, masala and David Stainton.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package server implements the shared-random-value commit-and-reveal
// coordinator run cooperatively by directory authorities: a 24-round
// (12 commit + 12 reveal) protocol run, persisted to the data-directory
// sr-state file between rounds.
package server

import (
	"context"
	"crypto/ed25519"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opaquenet/hsauth/authority/config"
	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/core/errs"
	"github.com/opaquenet/hsauth/core/worker"
	"github.com/opaquenet/hsauth/internal/log"
	"github.com/opaquenet/hsauth/internal/metrics"
)

const voteCommitKeyword = "shared-rand-commit"

// parseVoteCommitLine strips the "shared-rand-commit" keyword and parses
// the remainder with cell.ParseCommitLine.
func parseVoteCommitLine(line string) (*cell.CommitLine, error) {
	return cell.ParseCommitLine(line[len(voteCommitKeyword):])
}

// NRounds is the number of rounds in each of the commit and reveal phases
// of a protocol run: 12 commit rounds followed by 12 reveal rounds.
const NRounds = 12

// Coordinator owns the single process-global SR state as one value handed
// explicitly to every operation, initialized at boot and dropped at
// shutdown rather than threaded through package-level globals.
type Coordinator struct {
	worker.Worker

	mu sync.Mutex

	log       *logging
	dataDir   string
	votingSec uint64
	identity  ed25519.PrivateKey
	ed25519ID string
	rsaFpr    string
	peers     map[string]PeerTransport
	scratch   *ScratchStore

	round       int // 0..2*NRounds-1 within the current run
	run         *RunState
	validAfter  time.Time
	validUntil  time.Time
	previousSRV [32]byte
	currentSRV  [32]byte
	numReveals  uint64
	freshSRV    bool
	nRuns       uint64

	updateCh chan bool
}

// logging is a minimal alias so this package doesn't force every caller to
// import the op/go-logging type directly.
type logging = log.Backend

// Phase reports the phase of the current round: the first NRounds rounds of
// a run are Commit, the rest are Reveal.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

func (c *Coordinator) phaseLocked() Phase {
	if c.round < NRounds {
		return PhaseCommit
	}
	return PhaseReveal
}

// NewCoordinator constructs a Coordinator from a loaded config and this
// authority's own identity key, with a fresh in-memory run state. Callers
// typically follow this with an attempt to load persisted state via
// LoadSRState, falling back to this fresh state on any Persistence error.
func NewCoordinator(cfg *config.Config, identity ed25519.PrivateKey, backend *logging) *Coordinator {
	pub := identity.Public().(ed25519.PublicKey)
	// The commit-line fingerprint must be 40 hex digits (cell.ParseCommitLine
	// rejects anything else), so it is derived from the identity key rather
	// than taken from the human-readable Server.Identifier.
	fpr := sha1.Sum(pub)
	c := &Coordinator{
		log:       backend,
		dataDir:   cfg.Server.DataDir,
		votingSec: cfg.Parameters.VotingIntervalSeconds,
		identity:  identity,
		ed25519ID: base64.StdEncoding.EncodeToString(pub),
		rsaFpr:    strings.ToUpper(hex.EncodeToString(fpr[:])),
		peers:     make(map[string]PeerTransport),
		run:       NewRunState(),
		updateCh:  make(chan bool, 1),
	}
	scratch, err := OpenScratchStore(cfg.Server.DataDir)
	if err != nil {
		if backend != nil {
			backend.GetLogger("server").Warningf("round-scratch store unavailable, running without it: %v", err)
		}
	} else {
		c.scratch = scratch
	}
	return c
}

// Close releases resources held by the coordinator, in particular the
// round-scratch store's underlying file.
func (c *Coordinator) Close() error {
	return c.scratch.Close()
}

// RegisterPeer wires a transport for sending vote lines to a peer
// authority.
func (c *Coordinator) RegisterPeer(identifier string, t PeerTransport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[identifier] = t
}

// Restore loads persisted state from dataDir, replacing the in-memory
// fresh state on success. A Persistence error loading the sr-state file is
// non-fatal: the coordinator keeps the freshly-initialized run and returns
// the error, but still overlays whatever the round-scratch store has for
// the run in progress, since that store can hold commits accepted after
// the last sr-state snapshot was written or even before one was ever
// written at all.
func (c *Coordinator) Restore() error {
	ps, srErr := LoadSRState(c.dataDir)

	c.mu.Lock()
	defer c.mu.Unlock()

	run := NewRunState()
	if srErr == nil {
		c.validAfter = ps.ValidAfter
		c.validUntil = ps.ValidUntil
		if ps.PreviousSRV != nil {
			c.previousSRV = ps.PreviousSRV.Value
		}
		if ps.CurrentSRV != nil {
			c.currentSRV = ps.CurrentSRV.Value
			c.numReveals = ps.CurrentSRV.NumReveals
		}
		for _, cm := range ps.Commits {
			run.commits[cm.RSAFpr] = cm
		}
	} else if c.log != nil {
		c.log.GetLogger("server").Warningf("sr-state unusable, starting fresh: %v", srErr)
	}

	if scratched, err := c.scratch.Commits(); err != nil {
		if c.log != nil {
			c.log.GetLogger("server").Warningf("round-scratch store unreadable, relying on last sr-state snapshot: %v", err)
		}
	} else {
		for _, cm := range scratched {
			run.commits[cm.RSAFpr] = cm
		}
	}
	c.run = run
	return srErr
}

// persistLocked rebuilds the disk representation from in-memory state and
// writes it atomically, the sole point at which persisted state is
// rebuilt from the in-memory run. Callers must hold c.mu.
func (c *Coordinator) persistLocked() error {
	ps := &PersistedState{
		Version:    srStateVersion,
		ValidAfter: c.validAfter,
		ValidUntil: c.validUntil,
		Commits:    c.run.Commits(),
		PreviousSRV: &PersistedSRV{
			NumReveals: c.numReveals,
			Value:      c.previousSRV,
		},
		CurrentSRV: &PersistedSRV{
			NumReveals: c.numReveals,
			Value:      c.currentSRV,
		},
	}
	return WriteSRState(c.dataDir, ps)
}

// AdvanceRound runs the actions for the current round and moves to the
// next one, rolling over into a new run and
// computing the SRV when the reveal phase ends. It returns the sleep
// duration until the next round boundary.
func (c *Coordinator) AdvanceRound(ctx context.Context) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	c.validAfter = now
	c.validUntil = now.Add(time.Duration(c.votingSec) * time.Second)

	switch c.phaseLocked() {
	case PhaseCommit:
		if c.run.OwnCommit() == nil {
			own, err := c.run.GenerateOwnCommit(c.ed25519ID, c.rsaFpr, uint64(now.Unix()))
			if err != nil {
				return 0, err
			}
			if err := c.scratch.PutCommit(own); err != nil && c.log != nil {
				c.log.GetLogger("server").Warningf("round-scratch store unwritable: %v", err)
			}
		}
	case PhaseReveal:
		// Nothing structural happens on entering reveal phase beyond
		// accepting reveal attachments from here on; that path is
		// driven by IngestVoteLines as peer votes arrive.
	}

	if err := c.fanOutVoteLines(ctx); err != nil {
		if c.log != nil {
			c.log.GetLogger("server").Warningf("vote fan-out had errors: %v", err)
		}
	}

	c.round++
	if c.round >= 2*NRounds {
		c.rolloverRunLocked()
	}

	if err := c.persistLocked(); err != nil {
		return 0, err
	}
	return time.Duration(c.votingSec) * time.Second, nil
}

// rolloverRunLocked implements the "end of Reveal phase" transition:
// compute the new SRV, rotate current→previous, wipe the commit map, reset
// the round counter, bump the run count. Callers must hold c.mu.
func (c *Coordinator) rolloverRunLocked() {
	srv, numReveals, fresh := ComputeSRV(c.previousSRV, c.run.Commits())
	c.previousSRV = c.currentSRV
	c.currentSRV = srv
	c.numReveals = numReveals
	c.freshSRV = fresh
	c.run = NewRunState()
	c.round = 0
	c.nRuns++
	if err := c.scratch.Reset(); err != nil && c.log != nil {
		c.log.GetLogger("server").Warningf("round-scratch store reset failed: %v", err)
	}

	if metrics.ProtocolRuns != nil {
		outcome := "fresh"
		if !fresh {
			outcome = "disaster"
		}
		metrics.ProtocolRuns.WithLabelValues(outcome).Inc()
	}
}

// fanOutVoteLines delivers this run's vote-line payload to every
// registered peer concurrently, using an errgroup so the FSM can wait on
// and log aggregate failures instead of firing-and-forgetting goroutines
// the way the teacher's sendVoteToAuthorities does.
func (c *Coordinator) fanOutVoteLines(ctx context.Context) error {
	lines := c.voteLinesLocked()
	if len(lines) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for id, t := range c.peers {
		id, t := id, t
		g.Go(func() error {
			return t.SendVoteLines(gctx, id, lines)
		})
	}
	return g.Wait()
}

func (c *Coordinator) voteLinesLocked() []string {
	own := c.run.OwnCommit()
	if own == nil {
		return nil
	}
	return []string{"shared-rand-commit " + own.String()}
}

// IngestVoteLines parses and applies vote lines received from a peer
// authority: "shared-rand-commit ..." lines go to RunState.IngestPeerCommit;
// unrecognized lines are ignored, so newer keywords stay forwards-compatible
// with older peers.
func (c *Coordinator) IngestVoteLines(lines []string) error {
	c.mu.Lock()
	phase := c.phaseLocked()
	run := c.run
	c.mu.Unlock()

	var firstErr error
	for _, line := range lines {
		if !strings.HasPrefix(line, voteCommitKeyword) {
			continue
		}
		commit, err := parseVoteCommitLine(line)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			metrics.CommitsRejected.WithLabelValues("malformed").Inc()
			continue
		}
		if err := run.IngestPeerCommit(commit, phase); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			metrics.CommitsRejected.WithLabelValues(errs.KindOf(err).String()).Inc()
			continue
		}
		if err := c.scratch.PutCommit(commit); err != nil && c.log != nil {
			c.log.GetLogger("server").Warningf("round-scratch store unwritable: %v", err)
		}
		metrics.CommitsAccepted.Inc()
	}
	return firstErr
}
