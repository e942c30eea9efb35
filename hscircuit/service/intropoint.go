// Package service implements the service side of the introduction-point
// lifecycle: establishing an intro circuit, building the ESTABLISH_INTRO
// cell, enforcing the introduce2_count/introduce2_max cap, and dropping
// replayed INTRODUCE2 cells.
package service

import (
	"crypto/ed25519"
	"crypto/hmac"
	"encoding/binary"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/sha3"

	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/circuit"
	"github.com/opaquenet/hsauth/core/errs"
	"github.com/opaquenet/hsauth/hsident"
	"github.com/opaquenet/hsauth/internal/metrics"
)

// establishIntroSigPrefix is prepended to the signed byte range of an
// ESTABLISH_INTRO cell.
const establishIntroSigPrefix = "Tor establish-intro cell v1"

// defaultReplayCacheSize bounds the per-intro-point INTRODUCE2 replay
// cache. A real deployment sizes this to the intro point's expected
// lifetime traffic; this default matches introduce2_max so no legitimate
// cell within the point's lifetime is ever evicted before it could recur.
const defaultReplayCacheSize = 16384

// IntroPoint is the service-side bookkeeping for one introduction point.
// Invariant: IntroduceCount <= IntroduceMax; the
// point is Expired() once either that or TimeToExpire is reached.
type IntroPoint struct {
	BaseInfo     BaseInfo
	Keys         *hsident.IntroPointKeys
	LegacyRSAFpr string // set instead of Keys.AuthPublic for v2 legacy points; empty for v3

	IntroduceCount uint64
	IntroduceMax   uint64
	TimeToExpire   time.Time

	CircuitRetries     int
	CircuitEstablished bool

	Handle circuit.Handle

	replay *lru.Cache[[32]byte, struct{}]
}

// BaseInfo identifies the relay hosting this intro point and the link
// specifiers a client needs to extend a circuit to it.
type BaseInfo struct {
	NodeID         [20]byte
	LinkSpecifiers []cell.Extension
}

// NewIntroPoint constructs an IntroPoint with a fresh replay cache and the
// given INTRODUCE2 cap.
func NewIntroPoint(base BaseInfo, keys *hsident.IntroPointKeys, introduceMax uint64, expire time.Time) (*IntroPoint, error) {
	replay, err := lru.New[[32]byte, struct{}](defaultReplayCacheSize)
	if err != nil {
		return nil, errs.Wrap(errs.Permanent, "NewIntroPoint", err)
	}
	return &IntroPoint{
		BaseInfo:     base,
		Keys:         keys,
		IntroduceMax: introduceMax,
		TimeToExpire: expire,
		replay:       replay,
	}, nil
}

// Expired reports whether the intro point has hit its INTRODUCE2 cap or
// its time limit.
func (ip *IntroPoint) Expired(now time.Time) bool {
	return ip.IntroduceCount >= ip.IntroduceMax || !now.Before(ip.TimeToExpire)
}

// BuildEstablishIntro constructs the ESTABLISH_INTRO cell body for this
// intro point:
//
//	handshake_mac = HMAC-SHA3-256(key=circuitKeyMaterial, msg=start_mac_data..end_mac_data)
//	sig           = Ed25519-Sign(auth_priv, "Tor establish-intro cell v1" || start_mac_data..end_sig_fields)
func (ip *IntroPoint) BuildEstablishIntro(circuitKeyMaterial []byte, exts []cell.Extension) (*cell.EstablishIntro, error) {
	prefix, err := cell.EncodeEstablishIntroPrefix(cell.AuthKeyEd25519, ip.Keys.AuthPublic, exts)
	if err != nil {
		return nil, errs.Wrap(errs.Permanent, "BuildEstablishIntro", err)
	}

	mac := hmac.New(sha3.New256, circuitKeyMaterial)
	mac.Write(prefix)
	var handshakeMAC [32]byte
	copy(handshakeMAC[:], mac.Sum(nil))

	// end_sig_fields falls just before the sig bytes themselves, i.e. after
	// sig_len — an Ed25519 signature is always 64 bytes, so sig_len can be
	// folded into the signed range before the signature that fills it in
	// is computed.
	const sigLen = ed25519.SignatureSize
	sigMsg := make([]byte, 0, len(establishIntroSigPrefix)+len(prefix)+len(handshakeMAC)+2)
	sigMsg = append(sigMsg, establishIntroSigPrefix...)
	sigMsg = append(sigMsg, prefix...)
	sigMsg = append(sigMsg, handshakeMAC[:]...)
	var sigLenBuf [2]byte
	binary.BigEndian.PutUint16(sigLenBuf[:], sigLen)
	sigMsg = append(sigMsg, sigLenBuf[:]...)
	sig := ed25519.Sign(ip.Keys.AuthPrivate, sigMsg)

	return &cell.EstablishIntro{
		AuthKeyType:  cell.AuthKeyEd25519,
		AuthKey:      append([]byte(nil), ip.Keys.AuthPublic...),
		Extensions:   exts,
		HandshakeMAC: handshakeMAC,
		Sig:          sig,
	}, nil
}

// replayKey is the cache key for one INTRODUCE2 cell: the digest of its
// encrypted portion, matching the source's replay check on ciphertext
// rather than plaintext (no decryption needed to detect a duplicate).
func replayKey(encrypted []byte) [32]byte {
	return sha3.Sum256(encrypted)
}

// AcceptIntroduce2 applies the INTRODUCE2 admission rule: increments
// IntroduceCount and returns true only if the
// cap isn't exceeded and encrypted hasn't been seen before on this intro
// point. A replay or a cap breach returns false without mutating
// IntroduceCount for the cap-breach case (the point is already expired;
// the caller closes the circuit instead of processing further cells).
func (ip *IntroPoint) AcceptIntroduce2(encrypted []byte) bool {
	if ip.IntroduceCount >= ip.IntroduceMax {
		return false
	}

	key := replayKey(encrypted)
	if _, seen := ip.replay.Get(key); seen {
		metrics.Introduce2Replayed.Inc()
		return false
	}
	ip.replay.Add(key, struct{}{})
	ip.IntroduceCount++
	return true
}
