// Package cell implements the binary ESTABLISH_INTRO/INTRO_ESTABLISHED and
// INTRODUCE1/2/RENDEZVOUS1/2 cell bodies, plus the whitespace-tokenized
// shared-random commit/reveal vote lines, per the wire format trunnel
// generates for the real hidden-service cells (original_source/src/trunnel/
// hs/cell_establish_intro.c): big-endian multibyte integers, length-prefixed
// variable fields, and the start_mac_data/end_mac_data/end_sig_fields offset
// bookkeeping that lets a verifier re-MAC or re-sign the exact byte range a
// cell was built from.
package cell

import "encoding/binary"

// AuthKeyType is the type tag of the authentication key carried in an
// ESTABLISH_INTRO cell.
type AuthKeyType byte

const (
	AuthKeyLegacy0 AuthKeyType = 0
	AuthKeyLegacy1 AuthKeyType = 1
	AuthKeyEd25519 AuthKeyType = 2
)

func (t AuthKeyType) valid() bool {
	return t == AuthKeyLegacy0 || t == AuthKeyLegacy1 || t == AuthKeyEd25519
}

const handshakeMACLen = 32 // SHA3-256 digest size.

// EstablishIntro is the decoded ESTABLISH_INTRO cell body:
//
//	auth_key_type : u8  ∈ {0,1,2}
//	auth_key_len  : u16
//	auth_key      : u8[auth_key_len]
//	extensions    : cell_extension
//	handshake_mac : u8[32]
//	sig_len       : u16
//	sig           : u8[sig_len]
type EstablishIntro struct {
	AuthKeyType  AuthKeyType
	AuthKey      []byte
	Extensions   []Extension
	HandshakeMAC [32]byte
	Sig          []byte

	// raw and the offsets below are populated by DecodeEstablishIntro so
	// that a verifier can re-derive the exact byte ranges the MAC and
	// signature cover, without re-serializing the struct (which could
	// disagree with the bytes actually received).
	raw          []byte
	startMAC     int
	endMAC       int
	endSigFields int
}

// MACData returns the byte range [start_mac_data, end_mac_data) the
// handshake MAC is computed over. Only valid on a cell produced by
// DecodeEstablishIntro.
func (e *EstablishIntro) MACData() []byte {
	return e.raw[e.startMAC:e.endMAC]
}

// SigData returns the byte range [start_mac_data, end_sig_fields) the
// signature is computed over. Only valid on a cell produced by
// DecodeEstablishIntro.
func (e *EstablishIntro) SigData() []byte {
	return e.raw[e.startMAC:e.endSigFields]
}

// EncodeEstablishIntroPrefix returns the start_mac_data..end_mac_data byte
// range (auth_key_type || auth_key_len || auth_key || extensions) a builder
// needs to compute handshake_mac before the rest of the cell exists.
func EncodeEstablishIntroPrefix(authKeyType AuthKeyType, authKey []byte, exts []Extension) ([]byte, error) {
	if !authKeyType.valid() {
		return nil, ErrInvalid
	}
	if len(authKey) > 0xffff {
		return nil, ErrInvalid
	}
	extBytes, err := encodeExtensions(exts)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+2+len(authKey)+len(extBytes))
	out = append(out, byte(authKeyType))
	out = appendU16(out, uint16(len(authKey)))
	out = append(out, authKey...)
	out = append(out, extBytes...)
	return out, nil
}

// EncodeEstablishIntro serializes e. It refuses to encode a structurally
// inconsistent object (invalid auth_key_type, an auth_key/sig longer than a
// u16 can express).
func EncodeEstablishIntro(e *EstablishIntro) ([]byte, error) {
	if !e.AuthKeyType.valid() {
		return nil, ErrInvalid
	}
	if len(e.AuthKey) > 0xffff || len(e.Sig) > 0xffff {
		return nil, ErrInvalid
	}

	extBytes, err := encodeExtensions(e.Extensions)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+2+len(e.AuthKey)+len(extBytes)+handshakeMACLen+2+len(e.Sig))
	out = append(out, byte(e.AuthKeyType))
	out = appendU16(out, uint16(len(e.AuthKey)))
	out = append(out, e.AuthKey...)
	out = append(out, extBytes...)
	out = append(out, e.HandshakeMAC[:]...)
	out = appendU16(out, uint16(len(e.Sig)))
	out = append(out, e.Sig...)
	return out, nil
}

// DecodeEstablishIntro parses an ESTABLISH_INTRO cell body. It rejects
// truncated input with ErrTruncated and out-of-range tag values with
// ErrInvalid. encode(decode(b)) == b for every cell this accepts.
func DecodeEstablishIntro(b []byte) (*EstablishIntro, error) {
	e := &EstablishIntro{raw: b}
	pos := 0

	if len(b) < 1 {
		return nil, ErrTruncated
	}
	e.AuthKeyType = AuthKeyType(b[0])
	if !e.AuthKeyType.valid() {
		return nil, ErrInvalid
	}
	pos++

	authKeyLen, n, err := readU16(b, pos)
	if err != nil {
		return nil, err
	}
	pos += n
	if pos+int(authKeyLen) > len(b) {
		return nil, ErrTruncated
	}
	e.AuthKey = append([]byte(nil), b[pos:pos+int(authKeyLen)]...)
	pos += int(authKeyLen)

	exts, n, err := decodeExtensions(b[pos:])
	if err != nil {
		return nil, err
	}
	e.Extensions = exts
	pos += n
	e.endMAC = pos

	if pos+handshakeMACLen > len(b) {
		return nil, ErrTruncated
	}
	copy(e.HandshakeMAC[:], b[pos:pos+handshakeMACLen])
	pos += handshakeMACLen

	sigLen, n, err := readU16(b, pos)
	if err != nil {
		return nil, err
	}
	pos += n
	e.endSigFields = pos

	if pos+int(sigLen) > len(b) {
		return nil, ErrTruncated
	}
	e.Sig = append([]byte(nil), b[pos:pos+int(sigLen)]...)
	pos += int(sigLen)

	if pos != len(b) {
		return nil, ErrInvalid
	}
	return e, nil
}

// IntroEstablished is the decoded INTRO_ESTABLISHED cell body: just a
// cell_extension list in the real protocol (no extensions are defined by
// this core; the field exists so a future extension can be added without a
// wire-format break).
type IntroEstablished struct {
	Extensions []Extension
}

// EncodeIntroEstablished serializes ie.
func EncodeIntroEstablished(ie *IntroEstablished) ([]byte, error) {
	return encodeExtensions(ie.Extensions)
}

// DecodeIntroEstablished parses an INTRO_ESTABLISHED cell body.
func DecodeIntroEstablished(b []byte) (*IntroEstablished, error) {
	exts, n, err := decodeExtensions(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, ErrInvalid
	}
	return &IntroEstablished{Extensions: exts}, nil
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func readU16(b []byte, pos int) (uint16, int, error) {
	if pos+2 > len(b) {
		return 0, 0, ErrTruncated
	}
	return binary.BigEndian.Uint16(b[pos : pos+2]), 2, nil
}

func readU64(b []byte, pos int) (uint64, int, error) {
	if pos+8 > len(b) {
		return 0, 0, ErrTruncated
	}
	return binary.BigEndian.Uint64(b[pos : pos+8]), 8, nil
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
