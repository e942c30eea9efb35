package client

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/opaquenet/hsauth/core/errs"
)

// PickIntroPoint picks one intro point uniformly at
// random from all of the descriptor's intro points (once
// AnyIntroPointsUsable holds; individual points' keys are not checked),
// skipping points reach reports unreachable and applying the ExcludeNodes
// policy (an excluded pick is kept as a fallback, used only if nothing
// else qualifies and strictNodes is unset) — grounded on
// original_source/src/or/hs_client.c's pick_rend_circ... random-pick loop
// (pick a random remaining index, drop it from the pool, test it against
// ExcludeNodes, keep the first excluded pick as ei_excluded, fall back to
// it only if strictNodes is false).
func PickIntroPoint(desc *Descriptor, excluded NodeSet, strictNodes bool, reach ReachabilityPolicy) (*IntroPointDescriptor, error) {
	if desc == nil || !desc.AnyIntroPointsUsable() {
		return nil, errs.New(errs.Transient, "PickIntroPoint", "no usable introduction points")
	}

	pool := make([]*IntroPointDescriptor, 0, len(desc.IntroPoints))
	for i := range desc.IntroPoints {
		pool = append(pool, &desc.IntroPoints[i])
	}

	var fallback *IntroPointDescriptor
	for len(pool) > 0 {
		idx, err := randIndex(len(pool))
		if err != nil {
			return nil, err
		}
		candidate := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)

		if reach != nil && !reach.Reachable(candidate.NodeID) {
			continue
		}
		if excluded != nil && excluded.Exists(candidate.NodeID) {
			if fallback == nil {
				fallback = candidate
			}
			continue
		}
		return candidate, nil
	}

	if strictNodes || fallback == nil {
		return nil, errs.New(errs.Transient, "PickIntroPoint", "every introduction point excluded")
	}
	return fallback, nil
}

func randIndex(n int) (int, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, errs.Wrap(errs.Transient, "randIndex", err)
	}
	return int(binary.BigEndian.Uint32(buf[:]) % uint32(n)), nil
}
