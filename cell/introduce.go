package cell

const (
	legacyKeyIDLen      = 20
	RendezvousCookieLen = 20
)

// Introduce1 is the decoded INTRODUCE1 cell body sent by a client to an
// introduction point. legacy_key_id is retained for wire compatibility with
// legacy (RSA) auth but is all-zero whenever AuthKeyType is ed25519.
//
//	legacy_key_id : u8[20]
//	auth_key_type : u8  ∈ {0,1,2}
//	auth_key_len  : u16
//	auth_key      : u8[auth_key_len]
//	extensions    : cell_extension
//	encrypted     : u8[..]   // rest of cell; opaque to the intro point
type Introduce1 struct {
	LegacyKeyID [legacyKeyIDLen]byte
	AuthKeyType AuthKeyType
	AuthKey     []byte
	Extensions  []Extension
	Encrypted   []byte
}

// EncodeIntroduce1 serializes c.
func EncodeIntroduce1(c *Introduce1) ([]byte, error) {
	if !c.AuthKeyType.valid() || len(c.AuthKey) > 0xffff {
		return nil, ErrInvalid
	}
	extBytes, err := encodeExtensions(c.Extensions)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, legacyKeyIDLen+1+2+len(c.AuthKey)+len(extBytes)+len(c.Encrypted))
	out = append(out, c.LegacyKeyID[:]...)
	out = append(out, byte(c.AuthKeyType))
	out = appendU16(out, uint16(len(c.AuthKey)))
	out = append(out, c.AuthKey...)
	out = append(out, extBytes...)
	out = append(out, c.Encrypted...)
	return out, nil
}

// DecodeIntroduce1 parses an INTRODUCE1 cell body. The encrypted tail is not
// interpreted; the caller decrypts it and passes the plaintext to
// DecodeIntroduce1Payload.
func DecodeIntroduce1(b []byte) (*Introduce1, error) {
	if len(b) < legacyKeyIDLen+1 {
		return nil, ErrTruncated
	}
	c := &Introduce1{}
	copy(c.LegacyKeyID[:], b[:legacyKeyIDLen])
	pos := legacyKeyIDLen

	c.AuthKeyType = AuthKeyType(b[pos])
	if !c.AuthKeyType.valid() {
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
	c.AuthKey = append([]byte(nil), b[pos:pos+int(authKeyLen)]...)
	pos += int(authKeyLen)

	exts, n, err := decodeExtensions(b[pos:])
	if err != nil {
		return nil, err
	}
	c.Extensions = exts
	pos += n

	c.Encrypted = append([]byte(nil), b[pos:]...)
	return c, nil
}

// Introduce1Payload is the plaintext carried inside Introduce1.Encrypted:
// everything the service needs to complete the ntor handshake and dial the
// client's chosen rendezvous point.
//
//	rendezvous_cookie : u8[20]
//	subcredential     : u8[32]
//	onion_key         : u8[32]  // client's ntor handshake public share
//	link_specifiers   : cell_extension  // reused as a generic TLV list
type Introduce1Payload struct {
	RendezvousCookie [RendezvousCookieLen]byte
	Subcredential    [32]byte
	OnionKey         [32]byte
	LinkSpecifiers   []Extension
}

// EncodeIntroduce1Payload serializes p.
func EncodeIntroduce1Payload(p *Introduce1Payload) ([]byte, error) {
	lsBytes, err := encodeExtensions(p.LinkSpecifiers)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, RendezvousCookieLen+32+32+len(lsBytes))
	out = append(out, p.RendezvousCookie[:]...)
	out = append(out, p.Subcredential[:]...)
	out = append(out, p.OnionKey[:]...)
	out = append(out, lsBytes...)
	return out, nil
}

// DecodeIntroduce1Payload parses the decrypted body of an INTRODUCE1 cell.
func DecodeIntroduce1Payload(b []byte) (*Introduce1Payload, error) {
	if len(b) < RendezvousCookieLen+32+32 {
		return nil, ErrTruncated
	}
	p := &Introduce1Payload{}
	pos := 0
	copy(p.RendezvousCookie[:], b[pos:pos+RendezvousCookieLen])
	pos += RendezvousCookieLen
	copy(p.Subcredential[:], b[pos:pos+32])
	pos += 32
	copy(p.OnionKey[:], b[pos:pos+32])
	pos += 32

	ls, n, err := decodeExtensions(b[pos:])
	if err != nil {
		return nil, err
	}
	p.LinkSpecifiers = ls
	pos += n
	if pos != len(b) {
		return nil, ErrInvalid
	}
	return p, nil
}

// Introduce2 is wire-identical to Introduce1 and is a type alias of it; the
// separate name marks that the two travel over different circuits and the
// service and intro point apply different validation rules to each.
type Introduce2 = Introduce1

// EncodeIntroduce2 serializes c.
func EncodeIntroduce2(c *Introduce2) ([]byte, error) { return EncodeIntroduce1(c) }

// DecodeIntroduce2 parses an INTRODUCE2 cell body.
func DecodeIntroduce2(b []byte) (*Introduce2, error) { return DecodeIntroduce1(b) }
