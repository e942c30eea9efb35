// Package metrics exposes the Prometheus instrumentation for the SRV
// engine and the intro/rendezvous handshake state machines.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ProtocolRuns counts completed SRV protocol runs, labeled by whether
	// the run produced a fresh SRV or fell back to the disaster value.
	ProtocolRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hsauth",
		Subsystem: "srv",
		Name:      "protocol_runs_total",
		Help:      "Completed shared-random protocol runs.",
	}, []string{"outcome"})

	// CommitsAccepted counts peer commit lines accepted into the state.
	CommitsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hsauth",
		Subsystem: "srv",
		Name:      "commits_accepted_total",
		Help:      "Peer commit lines accepted into the running protocol state.",
	})

	// CommitsRejected counts peer commit/reveal lines rejected, labeled by
	// the reason.
	CommitsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hsauth",
		Subsystem: "srv",
		Name:      "commits_rejected_total",
		Help:      "Peer commit/reveal lines rejected during ingestion.",
	}, []string{"reason"})

	// IntroEstablished counts successful service-side ESTABLISH_INTRO
	// completions.
	IntroEstablished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hsauth",
		Subsystem: "hs",
		Name:      "intro_established_total",
		Help:      "Introduction points successfully established.",
	})

	// Introduce2Replayed counts INTRODUCE2 cells dropped as replays.
	Introduce2Replayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hsauth",
		Subsystem: "hs",
		Name:      "introduce2_replayed_total",
		Help:      "INTRODUCE2 cells dropped by the per-intro-point replay cache.",
	})

	// IntroPointsActive is the current count of established intro-point
	// circuits, labeled by service.
	IntroPointsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hsauth",
		Subsystem: "hs",
		Name:      "intro_points_active",
		Help:      "Currently established introduction-point circuits.",
	}, []string{"service"})
)

// Register adds every collector in this package to reg. Callers that embed
// hsauth into a larger process with its own registry call this once at
// startup; it is not done in an init() so tests can use their own registry.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ProtocolRuns, CommitsAccepted, CommitsRejected,
		IntroEstablished, Introduce2Replayed, IntroPointsActive,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
