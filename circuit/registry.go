package circuit

import (
	"sync"

	"github.com/google/uuid"

	"github.com/opaquenet/hsauth/core/errs"
)

// Handle is an opaque reference into the circuit subsystem. The core never
// holds a real circuit pointer (which would require a cyclic back-pointer);
// it holds a Handle and looks up whatever it needs through a Registry, an
// owning tag on the circuit plus a lookup table on the core side.
type Handle struct {
	id uuid.UUID
}

func (h Handle) String() string { return h.id.String() }

// IsZero reports whether h is the zero Handle (never issued by newHandle).
func (h Handle) IsZero() bool { return h.id == uuid.Nil }

func newHandle() Handle { return Handle{id: uuid.New()} }

// Registry is the core-side lookup table from opaque Handle to circuit
// Identifier, standing in for the external circuit subsystem's map. The
// core registers a circuit when it launches one and unregisters it when the
// circuit closes or is repurposed; it never reaches into the circuit
// subsystem's own internals.
type Registry struct {
	mu      sync.Mutex
	entries map[Handle]*Identifier
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*Identifier)}
}

// Register issues a fresh Handle for id (cloned so the registry never
// aliases the circuit's own copy) and stores it.
func (r *Registry) Register(id *Identifier) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := newHandle()
	r.entries[h] = id.Clone()
	return h
}

// Lookup returns the Identifier registered under h, or an error if h is
// unknown (the circuit has already closed, or h was never issued by this
// Registry).
func (r *Registry) Lookup(h Handle) (*Identifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.entries[h]
	if !ok {
		return nil, errs.New(errs.Permanent, "Registry.Lookup", "unknown circuit handle")
	}
	return id.Clone(), nil
}

// Unregister drops h's entry. Unregistering an unknown handle is a no-op,
// matching the source's tolerance for double-close during teardown races.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, h)
}

// Len returns the number of live entries, for cap-invariant tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CountKind returns the number of registered circuits with the given Kind.
func (r *Registry) CountKind(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.entries {
		if id.Kind == k {
			n++
		}
	}
	return n
}
