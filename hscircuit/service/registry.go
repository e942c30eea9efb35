package service

import (
	"crypto/ed25519"
	"sync"

	"github.com/opaquenet/hsauth/circuit"
)

// authKeyOf turns an Ed25519 public key into a map key.
func authKeyOf(pub ed25519.PublicKey) [ed25519.PublicKeySize]byte {
	var k [ed25519.PublicKeySize]byte
	copy(k[:], pub)
	return k
}

// Registry is the service-side intro-point registry keyed by auth key,
// grounded on hs_intropoint.c's handle_verified_establish_intro_cell: on
// each new ESTABLISH_INTRO with a given auth key, close any circuit
// already registered under it, then register the new one ("keep the
// newest, close all older" tie-break.
type Registry struct {
	mu      sync.Mutex
	byKey   map[[ed25519.PublicKeySize]byte]*IntroPoint
	handles map[[ed25519.PublicKeySize]byte]circuit.Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[[ed25519.PublicKeySize]byte]*IntroPoint),
		handles: make(map[[ed25519.PublicKeySize]byte]circuit.Handle),
	}
}

// Register installs ip under its auth key, superseding whatever was
// registered under that key before. It returns the circuit.Handle of the
// superseded entry (the zero Handle if there was none) so the caller can
// close that circuit; the relay-side close is out of this core's scope,
// but the bookkeeping that decides "which one" lives here.
func (r *Registry) Register(ip *IntroPoint, h circuit.Handle) circuit.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := authKeyOf(ip.Keys.AuthPublic)
	superseded := r.handles[key]
	r.byKey[key] = ip
	r.handles[key] = h
	return superseded
}

// Lookup returns the IntroPoint registered under authKey, if any.
func (r *Registry) Lookup(authKey ed25519.PublicKey) (*IntroPoint, circuit.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := authKeyOf(authKey)
	ip, ok := r.byKey[key]
	if !ok {
		return nil, circuit.Handle{}, false
	}
	return ip, r.handles[key], true
}

// Unregister drops the entry registered under authKey, if it matches h
// (a stale close racing a newer Register for the same key must not evict
// the newer entry).
func (r *Registry) Unregister(authKey ed25519.PublicKey, h circuit.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := authKeyOf(authKey)
	if r.handles[key] != h {
		return
	}
	delete(r.byKey, key)
	delete(r.handles, key)
}

// Len returns the number of registered intro points.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}
