package circuit

import "crypto/ed25519"

// RendezvousCookieLen is the length of a rendezvous cookie in bytes.
const RendezvousCookieLen = 20

// Identifier is the polymorphic tag attached to an origin circuit. It is
// exclusively owned by the circuit it's attached to; callers that need the
// same data for unrelated bookkeeping must Clone it rather than alias the
// original mutably.
type Identifier struct {
	Kind Kind

	// ServiceIdentity is present on every variant: the service's long-term
	// or blinded Ed25519 public key this circuit concerns.
	ServiceIdentity ed25519.PublicKey

	// IntroAuthKey is set on Intro* variants: the intro-point
	// authentication key material (the service's own auth keypair's public
	// half on the service side, the descriptor-supplied auth key on the
	// client side).
	IntroAuthKey ed25519.PublicKey

	// RendezvousCookie, RendezvousNtorSeed and RendezvousHandshakeInfo are
	// set on Rendezvous* variants.
	RendezvousCookie        [RendezvousCookieLen]byte
	RendezvousNtorSeed      []byte
	RendezvousHandshakeInfo []byte

	// StreamCount tracks attached application streams for
	// max_streams_per_rdv_circuit enforcement.
	StreamCount int
}

// Clone returns a deep copy of id, safe for a second owner (e.g. a lookup
// table entry) to hold without aliasing the circuit's own copy.
func (id *Identifier) Clone() *Identifier {
	out := *id
	out.ServiceIdentity = cloneKey(id.ServiceIdentity)
	out.IntroAuthKey = cloneKey(id.IntroAuthKey)
	if id.RendezvousNtorSeed != nil {
		out.RendezvousNtorSeed = append([]byte(nil), id.RendezvousNtorSeed...)
	}
	if id.RendezvousHandshakeInfo != nil {
		out.RendezvousHandshakeInfo = append([]byte(nil), id.RendezvousHandshakeInfo...)
	}
	return &out
}

func cloneKey(k ed25519.PublicKey) ed25519.PublicKey {
	if k == nil {
		return nil
	}
	out := make(ed25519.PublicKey, len(k))
	copy(out, k)
	return out
}

// NewIntroServiceIdentifier tags a service's intro-point circuit.
func NewIntroServiceIdentifier(serviceIdentity, introAuthKey ed25519.PublicKey) *Identifier {
	return &Identifier{
		Kind:            KindIntroService,
		ServiceIdentity: cloneKey(serviceIdentity),
		IntroAuthKey:    cloneKey(introAuthKey),
	}
}

// NewIntroClientIdentifier tags a client's introduction circuit.
func NewIntroClientIdentifier(serviceIdentity, introAuthKey ed25519.PublicKey) *Identifier {
	return &Identifier{
		Kind:            KindIntroClient,
		ServiceIdentity: cloneKey(serviceIdentity),
		IntroAuthKey:    cloneKey(introAuthKey),
	}
}

// NewRendezvousClientIdentifier tags a client's rendezvous circuit, seeded
// with a freshly chosen cookie.
func NewRendezvousClientIdentifier(serviceIdentity ed25519.PublicKey, cookie [RendezvousCookieLen]byte) *Identifier {
	return &Identifier{
		Kind:             KindRendezvousClient,
		ServiceIdentity:  cloneKey(serviceIdentity),
		RendezvousCookie: cookie,
	}
}

// NewRendezvousServiceIdentifier tags a service's rendezvous circuit,
// launched toward a client-supplied rendezvous point.
func NewRendezvousServiceIdentifier(serviceIdentity ed25519.PublicKey, cookie [RendezvousCookieLen]byte) *Identifier {
	return &Identifier{
		Kind:             KindRendezvousService,
		ServiceIdentity:  cloneKey(serviceIdentity),
		RendezvousCookie: cookie,
	}
}
