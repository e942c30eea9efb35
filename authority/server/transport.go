package server

import "context"

// PeerTransport delivers this authority's vote-line payloads to one peer
// authority and is implemented once per wire protocol (in-process for
// tests, a real network client in production). Replaces the teacher's
// direct `sendCommandToPeer`-over-wire call with an interface the FSM can
// fan out over and wait on.
type PeerTransport interface {
	// SendVoteLines delivers this run's commit or SRV vote-line payload
	// (already rendered to text by the caller) to the named peer.
	SendVoteLines(ctx context.Context, peerIdentifier string, lines []string) error
}
