package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"time"

	"github.com/opaquenet/hsauth/cell"
	"github.com/opaquenet/hsauth/circuit"
	"github.com/opaquenet/hsauth/core/errs"
)

// MaxRendTimeout and MaxRendFailures bound a client's introduce+rendezvous
// attempt: an intro circuit stuck in
// C_INTRODUCE_ACK_WAIT for MaxRendTimeout or longer is abandoned, and the AP
// stream is failed once more than MaxRendFailures consecutive attempts fail.
const (
	MaxRendTimeout  = 30 * time.Second
	MaxRendFailures = 1
)

// Attempt is the client-side state for one introduce+rendezvous flow
// against a single service, spanning the intro circuit and the rendezvous
// circuit launched alongside it.
type Attempt struct {
	ServiceIdentity ed25519.PublicKey
	IntroPoint      IntroPointDescriptor

	IntroPurpose circuit.ClientPurpose
	RendPurpose  circuit.ClientPurpose

	IntroHandle circuit.Handle
	RendHandle  circuit.Handle

	RendezvousCookie [circuit.RendezvousCookieLen]byte

	ackWaitSince time.Time
	failures     int
}

// NewAttempt begins an attempt: choose a fresh rendezvous cookie and
// set both circuits to their initial launch purposes. The caller is
// responsible for actually launching the two circuits and registering
// their identifiers with a circuit.Registry; this type only tracks the
// resulting handles and purpose transitions.
func NewAttempt(serviceIdentity ed25519.PublicKey, ip IntroPointDescriptor) (*Attempt, error) {
	a := &Attempt{
		ServiceIdentity: serviceIdentity,
		IntroPoint:      ip,
		IntroPurpose:    circuit.CIntroducing,
		RendPurpose:     circuit.CEstablishRend,
	}
	if _, err := rand.Read(a.RendezvousCookie[:]); err != nil {
		return nil, errs.Wrap(errs.Transient, "NewAttempt", err)
	}
	return a, nil
}

// RendezvousEstablished implements step 4's "on open, send
// ESTABLISH_RENDEZVOUS" transition once the rendezvous circuit reports
// open: it moves from C_ESTABLISH_REND to C_REND_READY.
func (a *Attempt) RendezvousEstablished() {
	a.RendPurpose = circuit.CRendReady
}

// BuildIntroduce1 implements step 5: assemble the INTRODUCE1 payload
// carrying the ntor handshake share, rendezvous cookie, intro point link
// specifiers and subcredential, ready for the caller to encrypt against
// the intro point's enc_key and wrap in an Introduce1 cell.
func (a *Attempt) BuildIntroduce1(onionKeyShare [32]byte, subcredential [32]byte) (*cell.Introduce1Payload, error) {
	if a.IntroPurpose != circuit.CIntroducing {
		return nil, errs.New(errs.Permanent, "BuildIntroduce1", "intro circuit not in C_INTRODUCING")
	}
	return &cell.Introduce1Payload{
		RendezvousCookie: a.RendezvousCookie,
		Subcredential:    subcredential,
		OnionKey:         onionKeyShare,
		LinkSpecifiers:   a.IntroPoint.LinkSpecifiers,
	}, nil
}

// Sent implements step 6: after the INTRODUCE1 cell is on the wire, the
// intro circuit moves to C_INTRODUCE_ACK_WAIT and the time the wait began is
// recorded so TimedOut can be checked later.
func (a *Attempt) Sent(now time.Time) {
	a.IntroPurpose = circuit.CIntroduceAckWait
	a.ackWaitSince = now
}

// TimedOut reports whether the intro circuit has spent MaxRendTimeout or
// longer waiting for an INTRODUCE_ACK.
func (a *Attempt) TimedOut(now time.Time) bool {
	return a.IntroPurpose == circuit.CIntroduceAckWait &&
		!a.ackWaitSince.IsZero() && now.Sub(a.ackWaitSince) >= MaxRendTimeout
}

// AckSucceeded implements step 7's success path: the rendezvous circuit
// moves to C_REND_READY_INTRO_ACKED and the caller should close the intro
// circuit (its job is done). Returns the intro circuit's handle to close.
func (a *Attempt) AckSucceeded() circuit.Handle {
	a.IntroPurpose = circuit.CIntroduceAcked
	a.RendPurpose = circuit.CRendReadyIntroAcked
	a.failures = 0
	return a.IntroHandle
}

// AckFailed implements step 7's NAK path: the intro circuit returns to
// C_INTRODUCING for a retry, and the failure counter that gates
// MaxRendFailures is incremented. ExhaustedRetries reports whether the AP
// stream this attempt serves should now be failed outright.
func (a *Attempt) AckFailed() (exhaustedRetries bool) {
	a.IntroPurpose = circuit.CIntroducing
	a.failures++
	return a.failures > MaxRendFailures
}

// RendezvousCompleted implements step 8: once RENDEZVOUS2 arrives and the
// caller has completed the ntor handshake externally, the rendezvous
// circuit is finalized to C_REND_JOINED and is ready for stream attach.
func (a *Attempt) RendezvousCompleted() {
	a.RendPurpose = circuit.CRendJoined
}
