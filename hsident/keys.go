package hsident

import (
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"github.com/opaquenet/hsauth/core/errs"
)

// DescriptorSigningKeypair is the short-lived Ed25519 keypair a service
// uses to sign one time period's descriptor, itself certified by that
// period's blinded identity key.
type DescriptorSigningKeypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewDescriptorSigningKeypair generates a fresh descriptor-signing keypair.
// A real deployment certifies Public under the period's blinded key before
// publishing; that certificate format is outside this layer's scope.
func NewDescriptorSigningKeypair() (*DescriptorSigningKeypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "NewDescriptorSigningKeypair", err)
	}
	return &DescriptorSigningKeypair{Public: pub, Private: priv}, nil
}

// IntroPointKeys bundles the two ephemeral keypairs a service generates
// per intro point: an
// Ed25519 authentication keypair used to sign ESTABLISH_INTRO, and an
// X25519 encryption keypair the descriptor publishes so clients can
// complete an ntor handshake against this specific intro point.
type IntroPointKeys struct {
	AuthPublic  ed25519.PublicKey
	AuthPrivate ed25519.PrivateKey
	EncPublic   []byte // X25519, 32 bytes
	EncPrivate  []byte // X25519, 32 bytes
}

// NewIntroPointKeys generates a fresh pair of ephemeral intro-point
// keypairs. Callers must wipe EncPrivate/AuthPrivate on free.
func NewIntroPointKeys() (*IntroPointKeys, error) {
	authPub, authPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "NewIntroPointKeys", err)
	}
	var encPriv [curve25519.ScalarSize]byte
	if _, err := rand.Read(encPriv[:]); err != nil {
		return nil, errs.Wrap(errs.Transient, "NewIntroPointKeys", err)
	}
	encPriv[0] &= 248
	encPriv[31] &= 127
	encPriv[31] |= 64
	var encPub [32]byte
	curve25519.ScalarBaseMult(&encPub, &encPriv)
	return &IntroPointKeys{
		AuthPublic:  authPub,
		AuthPrivate: authPriv,
		EncPublic:   encPub[:],
		EncPrivate:  encPriv[:],
	}, nil
}

// Wipe zeroes the private key material in place.
func (k *IntroPointKeys) Wipe() {
	for i := range k.AuthPrivate {
		k.AuthPrivate[i] = 0
	}
	for i := range k.EncPrivate {
		k.EncPrivate[i] = 0
	}
}
