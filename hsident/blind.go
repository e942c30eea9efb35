// blind.go - Ed25519 key blinding.
// License: AGPL version 3
// Copyright: 2021 - Anonymous contributor
//
// Adapted from the scalar-arithmetic shape of blinded25519.go (clamp,
// multiply, re-derive the public point against crypto/ed25519's own key
// types), with the blinding nonce derived by blindingNonce's SHA3-256
// formula instead of the original's sha512_256(factor).

package hsident

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"

	"github.com/opaquenet/hsauth/core/errs"
)

// blindingNonce computes the key-blinding nonce:
// SHA3-256("key-blind" || u64_be(period_num) || u64_be(period_length_seconds)).
func blindingNonce(periodNum, periodLengthSeconds uint64) []byte {
	buf := make([]byte, 0, len("key-blind")+8+8)
	buf = append(buf, "key-blind"...)
	buf = appendU64(buf, periodNum)
	buf = appendU64(buf, periodLengthSeconds)
	sum := sha3.Sum256(buf)
	return sum[:]
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// BlindPublicKey derives the blinded public key A' = h*A for the given
// time period, following the scalar-multiplication approach of the
// teacher's core/crypto/eddsa.PublicKey.Blind, but with the nonce derived
// by blindingNonce's SHA3-256 formula instead of the teacher's
// sha512_256(factor).
func BlindPublicKey(identity ed25519.PublicKey, periodNum, periodLengthSeconds uint64) (ed25519.PublicKey, error) {
	if len(identity) != ed25519.PublicKeySize {
		return nil, errs.New(errs.Permanent, "BlindPublicKey", "bad identity key length")
	}
	point, err := new(edwards25519.Point).SetBytes(identity)
	if err != nil {
		return nil, errs.Wrap(errs.Permanent, "BlindPublicKey", err)
	}
	h, err := clampedScalar(blindingNonce(periodNum, periodLengthSeconds))
	if err != nil {
		return nil, errs.Wrap(errs.Permanent, "BlindPublicKey", err)
	}
	blinded := new(edwards25519.Point).ScalarMult(h, point)
	out := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(out, blinded.Bytes())
	return out, nil
}

// BlindedPrivateKey holds the blinded expanded private scalar for one
// time period. It is not a standard ed25519.PrivateKey: it
// stores the blinded 32-byte scalar in place of the seed-derived one, the
// way the teacher's BlindedPrivateKey does, so signing must go through
// its Sign method rather than crypto/ed25519.Sign.
type BlindedPrivateKey struct {
	scalar [32]byte
	public ed25519.PublicKey
}

// PublicKey returns the public half of the blinded key.
func (b *BlindedPrivateKey) PublicKey() ed25519.PublicKey { return b.public }

// BlindPrivateKey blinds identity's expanded private scalar for the given
// time period, grounded on the teacher's PrivateKey.Blind.
func BlindPrivateKey(identity ed25519.PrivateKey, periodNum, periodLengthSeconds uint64) (*BlindedPrivateKey, error) {
	if len(identity) != ed25519.PrivateKeySize {
		return nil, errs.New(errs.Permanent, "BlindPrivateKey", "bad identity key length")
	}
	h, err := clampedScalar(blindingNonce(periodNum, periodLengthSeconds))
	if err != nil {
		return nil, errs.Wrap(errs.Permanent, "BlindPrivateKey", err)
	}

	digest := sha512.Sum512(identity.Seed())
	a, err := clampedScalar(digest[:32])
	if err != nil {
		return nil, errs.Wrap(errs.Permanent, "BlindPrivateKey", err)
	}

	blindedScalar := new(edwards25519.Scalar).Multiply(h, a)
	blindedPoint := new(edwards25519.Point).ScalarBaseMult(blindedScalar)

	bpk := &BlindedPrivateKey{public: make(ed25519.PublicKey, ed25519.PublicKeySize)}
	copy(bpk.scalar[:], blindedScalar.Bytes())
	copy(bpk.public, blindedPoint.Bytes())
	return bpk, nil
}

// Sign produces an ed25519 signature using the blinded expanded scalar
// directly rather than deriving it from a seed on every call, matching the
// teacher's BlindedPrivateKey.Sign.
func (b *BlindedPrivateKey) Sign(message []byte) []byte {
	h := sha512.New()
	h.Write(b.scalar[:])
	h.Write(message)
	nonceDigest := h.Sum(nil)
	r, _ := new(edwards25519.Scalar).SetUniformBytes(extend(nonceDigest))
	encodedR := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(encodedR)
	h.Write(b.public)
	h.Write(message)
	hramDigest := h.Sum(nil)
	hram, _ := new(edwards25519.Scalar).SetUniformBytes(hramDigest)

	expanded, _ := new(edwards25519.Scalar).SetUniformBytes(extend(b.scalar[:]))
	s := new(edwards25519.Scalar).MultiplyAdd(hram, expanded, r)

	sig := make([]byte, ed25519.SignatureSize)
	copy(sig, encodedR)
	copy(sig[32:], s.Bytes())
	return sig
}

// extend pads a 32-byte scalar out to the 64 bytes SetUniformBytes expects,
// with the extra bytes at zero, following the teacher's documented
// SetUniformBytes usage for initializing unclamped 32-byte scalars.
func extend(b []byte) []byte {
	out := make([]byte, 64)
	copy(out, b)
	return out
}

func clampedScalar(b []byte) (*edwards25519.Scalar, error) {
	s, err := new(edwards25519.Scalar).SetBytesWithClamping(padTo32(b))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func padTo32(b []byte) []byte {
	if len(b) == 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out, b)
	return out
}

// Subcredential derives the per-period subcredential from the service's
// long-term identity key and its blinded key for the period:
// cred = SHA3-256("credential" || identity_pk)
// subcred = SHA3-256("subcredential" || cred || blinded_pk)
func Subcredential(identityPK, blindedPK ed25519.PublicKey) [32]byte {
	credBuf := append([]byte("credential"), identityPK...)
	cred := sha3.Sum256(credBuf)

	subBuf := make([]byte, 0, len("subcredential")+32+len(blindedPK))
	subBuf = append(subBuf, "subcredential"...)
	subBuf = append(subBuf, cred[:]...)
	subBuf = append(subBuf, blindedPK...)
	return sha3.Sum256(subBuf)
}
