package service

import (
	"time"

	"github.com/opaquenet/hsauth/circuit"
	"github.com/opaquenet/hsauth/internal/metrics"
)

// MaxIntroCircsPerPeriod and IntroCircRetryPeriod bound service-side
// intro-circuit launch retries.
const (
	MaxIntroCircsPerPeriod = 10
	IntroCircRetryPeriod   = 300 * time.Second
)

// Manager owns the set of intro points a service currently keeps
// established, enforcing the num_intro_points invariant (once the service
// already has num_intro_points opened intro circuits, a further one is
// repurposed to general and its intro point dropped) and the per-period
// retry-launch cap.
type Manager struct {
	registry       *Registry
	numIntroPoints int
	store          *Store

	serviceLabel string

	periodStart  time.Time
	periodLaunch int
}

// NewManager returns a Manager targeting numIntroPoints established intro
// circuits, labeling its metrics under serviceLabel.
func NewManager(numIntroPoints int, serviceLabel string) *Manager {
	return &Manager{
		registry:       NewRegistry(),
		numIntroPoints: numIntroPoints,
		serviceLabel:   serviceLabel,
	}
}

// SetStore wires a durable store into the manager: subsequent Established
// and Closed calls write through to it, so the set of established intro
// points survives a process restart.
func (m *Manager) SetStore(store *Store) {
	m.store = store
}

// LoadFromStore repopulates the registry from store (typically called once
// at startup after SetStore), registering every recorded intro point under
// the zero circuit.Handle: the caller still owns reconnecting each one to
// an actual circuit and should treat a zero handle as "not yet reattached".
func (m *Manager) LoadFromStore() error {
	if m.store == nil {
		return nil
	}
	points, err := m.store.LoadAll()
	if err != nil {
		return err
	}
	for _, ip := range points {
		ip.CircuitEstablished = false
		m.registry.Register(ip, circuit.Handle{})
	}
	metrics.IntroPointsActive.WithLabelValues(m.serviceLabel).Set(float64(m.registry.Len()))
	return nil
}

// AllowLaunch reports whether the service may launch another intro
// circuit right now, given the already-established count and the
// per-period retry cap. now is passed in so tests don't depend on wall
// clock.
func (m *Manager) AllowLaunch(now time.Time) bool {
	if m.registry.Len() >= m.numIntroPoints {
		return false
	}
	if m.periodStart.IsZero() || now.Sub(m.periodStart) >= IntroCircRetryPeriod {
		m.periodStart = now
		m.periodLaunch = 0
	}
	return m.periodLaunch < MaxIntroCircsPerPeriod
}

// RecordLaunch accounts for a just-issued intro-circuit launch attempt
// against the per-period cap. Call only after AllowLaunch returned true.
func (m *Manager) RecordLaunch() {
	m.periodLaunch++
}

// CircuitOpened is the circuit-opened callback: if the service already has
// num_intro_points established, the caller must repurpose this circuit to
// general and drop ip (ok=false); otherwise the intro point is kept and
// should proceed to ESTABLISH_INTRO (ok=true).
func (m *Manager) CircuitOpened(ip *IntroPoint) (ok bool) {
	return m.registry.Len() < m.numIntroPoints
}

// Established registers ip as successfully established under h, closing
// out whatever was previously registered under the same auth key. It
// returns the superseded handle, or the zero Handle if there was none.
func (m *Manager) Established(ip *IntroPoint, h circuit.Handle) circuit.Handle {
	ip.CircuitEstablished = true
	superseded := m.registry.Register(ip, h)
	_ = m.store.Put(ip)
	metrics.IntroEstablished.Inc()
	metrics.IntroPointsActive.WithLabelValues(m.serviceLabel).Set(float64(m.registry.Len()))
	return superseded
}

// Closed unregisters the intro point previously established under h with
// the given auth key.
func (m *Manager) Closed(ip *IntroPoint, h circuit.Handle) {
	m.registry.Unregister(ip.Keys.AuthPublic, h)
	_ = m.store.Delete(ip.Keys.AuthPublic)
	metrics.IntroPointsActive.WithLabelValues(m.serviceLabel).Set(float64(m.registry.Len()))
}

// Count returns the number of currently established intro points.
func (m *Manager) Count() int {
	return m.registry.Len()
}
