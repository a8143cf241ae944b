package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports signaling counters in Prometheus format.
type Metrics struct {
	RegisteredUsers prometheus.Gauge
	ActiveCalls     prometheus.Gauge

	CallsStarted  prometheus.Counter
	CallsAccepted prometheus.Counter
	CallsRejected prometheus.Counter
	CallsFailed   prometheus.Counter

	CandidatesRelayed prometheus.Counter
	PlaybacksStarted  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	const ns = "talk"
	return &Metrics{
		RegisteredUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "signaling", Name: "registered_users",
			Help: "Currently registered users.",
		}),
		ActiveCalls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "signaling", Name: "active_calls",
			Help: "Currently bound call pairs.",
		}),
		CallsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "signaling", Name: "calls_started_total",
			Help: "Call offers delivered to a callee.",
		}),
		CallsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "signaling", Name: "calls_accepted_total",
			Help: "Calls that reached the in-call state.",
		}),
		CallsRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "signaling", Name: "calls_rejected_total",
			Help: "Calls rejected by the callee or an absent callee.",
		}),
		CallsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "signaling", Name: "calls_failed_total",
			Help: "Calls torn down by a media engine failure during setup.",
		}),
		CandidatesRelayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "signaling", Name: "candidates_relayed_total",
			Help: "ICE candidates accepted from clients.",
		}),
		PlaybacksStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "signaling", Name: "playbacks_started_total",
			Help: "Recorded-call playbacks started.",
		}),
	}
}
