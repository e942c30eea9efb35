package cell

// Rendezvous1 is the decoded RENDEZVOUS1 cell body a service sends to the
// rendezvous point, which relays its handshake_info to the client circuit as
// RENDEZVOUS2 (the rendezvous point strips the leading cookie before
// relaying).
//
//	rendezvous_cookie : u8[20]
//	handshake_info    : u8[..]  // ntor server handshake reply, rest of cell
type Rendezvous1 struct {
	RendezvousCookie [RendezvousCookieLen]byte
	HandshakeInfo    []byte
}

// EncodeRendezvous1 serializes r.
func EncodeRendezvous1(r *Rendezvous1) ([]byte, error) {
	out := make([]byte, 0, RendezvousCookieLen+len(r.HandshakeInfo))
	out = append(out, r.RendezvousCookie[:]...)
	out = append(out, r.HandshakeInfo...)
	return out, nil
}

// DecodeRendezvous1 parses a RENDEZVOUS1 cell body.
func DecodeRendezvous1(b []byte) (*Rendezvous1, error) {
	if len(b) < RendezvousCookieLen {
		return nil, ErrTruncated
	}
	r := &Rendezvous1{}
	copy(r.RendezvousCookie[:], b[:RendezvousCookieLen])
	r.HandshakeInfo = append([]byte(nil), b[RendezvousCookieLen:]...)
	return r, nil
}

// Rendezvous2 is the cell a client receives on its rendezvous circuit: the
// same ntor server handshake reply as Rendezvous1, with the cookie already
// stripped by the rendezvous point (the client's circuit identifies the
// cookie itself, so it isn't repeated on the wire).
//
//	handshake_info : u8[..]  // rest of cell
type Rendezvous2 struct {
	HandshakeInfo []byte
}

// EncodeRendezvous2 serializes r.
func EncodeRendezvous2(r *Rendezvous2) ([]byte, error) {
	return append([]byte(nil), r.HandshakeInfo...), nil
}

// DecodeRendezvous2 parses a RENDEZVOUS2 cell body.
func DecodeRendezvous2(b []byte) (*Rendezvous2, error) {
	return &Rendezvous2{HandshakeInfo: append([]byte(nil), b...)}, nil
}
