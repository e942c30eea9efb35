package server

import (
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/core/errs"
)

// scratchFileName is the bbolt database holding commits accepted since the
// last round boundary. The sr-state file written by persistLocked is the
// authoritative per-round snapshot; this store exists because peer commits
// arrive asynchronously through IngestVoteLines between those boundaries,
// and without it a crash mid-round would lose every commit accepted after
// the last AdvanceRound call instead of just the in-flight one.
const scratchFileName = "round-scratch.db"

var scratchCommitsBucket = []byte("commits")

// ScratchStore durably records the commits accepted during the run
// currently in progress, cbor-encoded and keyed by RSA fingerprint. It is
// reset at the start of every new run and is read only by Coordinator.Restore,
// which overlays its commits on the last sr-state snapshot; its failure modes
// are all non-fatal to the coordinator.
type ScratchStore struct {
	db *bbolt.DB
}

// OpenScratchStore opens (creating if absent) the scratch store under
// dataDir.
func OpenScratchStore(dataDir string) (*ScratchStore, error) {
	db, err := bbolt.Open(filepath.Join(dataDir, scratchFileName), 0600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "OpenScratchStore", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(scratchCommitsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Persistence, "OpenScratchStore", err)
	}
	return &ScratchStore{db: db}, nil
}

// Close releases the underlying database file. Close is safe to call on a
// nil *ScratchStore or one that failed to open.
func (s *ScratchStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutCommit durably records c, keyed by its RSA fingerprint. A nil receiver
// (scratch persistence unavailable) is a no-op, matching the non-fatal
// treatment of this store everywhere else.
func (s *ScratchStore) PutCommit(c *cell.CommitLine) error {
	if s == nil || s.db == nil {
		return nil
	}
	raw, err := cbor.Marshal(c)
	if err != nil {
		return errs.Wrap(errs.Persistence, "PutCommit", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(scratchCommitsBucket).Put([]byte(c.RSAFpr), raw)
	})
}

// Commits returns every commit recorded so far in the current run.
func (s *ScratchStore) Commits() ([]*cell.CommitLine, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var out []*cell.CommitLine
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(scratchCommitsBucket).ForEach(func(_, v []byte) error {
			c := &cell.CommitLine{}
			if err := cbor.Unmarshal(v, c); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "Commits", err)
	}
	return out, nil
}

// Reset drops every recorded commit, for the start of a new run.
func (s *ScratchStore) Reset() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(scratchCommitsBucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(scratchCommitsBucket)
		return err
	})
}
