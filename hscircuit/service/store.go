package service

import (
	"crypto/ed25519"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/core/errs"
	"github.com/opaquenet/hsauth/hsident"
)

var introPointsBucket = []byte("intro_points")

// introPointRecord is the durable form of an IntroPoint: enough to resume
// serving under the same auth/enc keys after a restart. The descriptor a
// service has already published commits it to those keys for the rest of
// the intro point's lifetime, so losing them on every restart would force
// a republish far more often than the intro point's own expiry requires.
// The INTRODUCE2 replay cache is deliberately excluded; see LoadAll.
type introPointRecord struct {
	NodeID           [20]byte
	LinkSpecifiers   []cell.Extension
	AuthPublic       ed25519.PublicKey
	AuthPrivate      ed25519.PrivateKey
	EncPublic        []byte
	EncPrivate       []byte
	LegacyRSAFpr     string
	IntroduceCount   uint64
	IntroduceMax     uint64
	TimeToExpireUnix int64
}

// Store durably records established intro points, cbor-encoded and keyed
// by auth key, the service-side counterpart of authority/server's
// round-scratch store.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) the intro-point store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "OpenStore", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(introPointsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Persistence, "OpenStore", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file. Close is safe to call on a
// nil *Store or one that failed to open.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put durably records ip, keyed by its auth public key. A nil receiver is
// a no-op.
func (s *Store) Put(ip *IntroPoint) error {
	if s == nil || s.db == nil {
		return nil
	}
	rec := &introPointRecord{
		NodeID:           ip.BaseInfo.NodeID,
		LinkSpecifiers:   ip.BaseInfo.LinkSpecifiers,
		AuthPublic:       ip.Keys.AuthPublic,
		AuthPrivate:      ip.Keys.AuthPrivate,
		EncPublic:        ip.Keys.EncPublic,
		EncPrivate:       ip.Keys.EncPrivate,
		LegacyRSAFpr:     ip.LegacyRSAFpr,
		IntroduceCount:   ip.IntroduceCount,
		IntroduceMax:     ip.IntroduceMax,
		TimeToExpireUnix: ip.TimeToExpire.Unix(),
	}
	raw, err := cbor.Marshal(rec)
	if err != nil {
		return errs.Wrap(errs.Persistence, "Put", err)
	}
	key := authKeyOf(ip.Keys.AuthPublic)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(introPointsBucket).Put(key[:], raw)
	})
}

// Delete removes the record registered under authKey, if any.
func (s *Store) Delete(authKey ed25519.PublicKey) error {
	if s == nil || s.db == nil {
		return nil
	}
	key := authKeyOf(authKey)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(introPointsBucket).Delete(key[:])
	})
}

// LoadAll reconstructs every durably recorded intro point as a fresh
// IntroPoint with an empty replay cache. The cache is never persisted: a
// restart simply starts that intro point's replay window over, at worst
// re-admitting a cell that a crash meant the service never actually
// finished processing the first time.
func (s *Store) LoadAll() ([]*IntroPoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var out []*IntroPoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(introPointsBucket).ForEach(func(_, v []byte) error {
			rec := &introPointRecord{}
			if err := cbor.Unmarshal(v, rec); err != nil {
				return err
			}
			ip, err := NewIntroPoint(
				BaseInfo{NodeID: rec.NodeID, LinkSpecifiers: rec.LinkSpecifiers},
				&hsident.IntroPointKeys{
					AuthPublic:  rec.AuthPublic,
					AuthPrivate: rec.AuthPrivate,
					EncPublic:   rec.EncPublic,
					EncPrivate:  rec.EncPrivate,
				},
				rec.IntroduceMax,
				time.Unix(rec.TimeToExpireUnix, 0),
			)
			if err != nil {
				return err
			}
			ip.LegacyRSAFpr = rec.LegacyRSAFpr
			ip.IntroduceCount = rec.IntroduceCount
			out = append(out, ip)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, "LoadAll", err)
	}
	return out, nil
}
