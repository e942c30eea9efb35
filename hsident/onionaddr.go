package hsident

import (
	"crypto/ed25519"
	"encoding/base32"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/opaquenet/hsauth/core/errs"
)

// OnionAddressVersion is the only version this package emits or accepts.
const OnionAddressVersion = 3

const onionAddressLen = ed25519.PublicKeySize + 2 + 1

var onionEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// checksum computes SHA3-256(".onion checksum" || pubkey || version)[:2].
func checksum(pubkey ed25519.PublicKey, version byte) [2]byte {
	buf := make([]byte, 0, len(".onion checksum")+len(pubkey)+1)
	buf = append(buf, ".onion checksum"...)
	buf = append(buf, pubkey...)
	buf = append(buf, version)
	sum := sha3.Sum256(buf)
	var out [2]byte
	copy(out[:], sum[:2])
	return out
}

// EncodeOnionAddress builds the v3 ".onion" address for pubkey: lowercase
// base32(pubkey || checksum || version), no padding, with the ".onion"
// suffix appended.
func EncodeOnionAddress(pubkey ed25519.PublicKey) (string, error) {
	if len(pubkey) != ed25519.PublicKeySize {
		return "", errs.New(errs.Permanent, "EncodeOnionAddress", "bad public key length")
	}
	sum := checksum(pubkey, OnionAddressVersion)

	raw := make([]byte, 0, onionAddressLen)
	raw = append(raw, pubkey...)
	raw = append(raw, sum[:]...)
	raw = append(raw, OnionAddressVersion)

	return strings.ToLower(onionEncoding.EncodeToString(raw)) + ".onion", nil
}

// DecodeOnionAddress parses and validates a v3 ".onion" address, returning
// the embedded public key. It rejects addresses with a bad checksum, wrong
// version, or wrong length.
func DecodeOnionAddress(addr string) (ed25519.PublicKey, error) {
	addr = strings.ToLower(strings.TrimSuffix(addr, ".onion"))
	raw, err := onionEncoding.DecodeString(addr)
	if err != nil {
		return nil, errs.Wrap(errs.Permanent, "DecodeOnionAddress", err)
	}
	if len(raw) != onionAddressLen {
		return nil, errs.New(errs.Permanent, "DecodeOnionAddress", "bad decoded length")
	}

	pubkey := ed25519.PublicKey(raw[:ed25519.PublicKeySize])
	var gotSum [2]byte
	copy(gotSum[:], raw[ed25519.PublicKeySize:ed25519.PublicKeySize+2])
	version := raw[ed25519.PublicKeySize+2]

	if version != OnionAddressVersion {
		return nil, errs.New(errs.Permanent, "DecodeOnionAddress", "unsupported version")
	}
	if wantSum := checksum(pubkey, version); wantSum != gotSum {
		return nil, errs.New(errs.Permanent, "DecodeOnionAddress", "checksum mismatch")
	}

	out := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(out, pubkey)
	return out, nil
}
