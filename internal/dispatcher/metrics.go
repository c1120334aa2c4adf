package dispatcher

import "github.com/prometheus/client_golang/prometheus"

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidispatch",
			Subsystem: "dispatcher",
			Name:      "calls_total",
			Help:      "Capability calls routed to a backend",
		},
		[]string{"capability", "backend", "outcome"},
	)

	switchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidispatch",
			Subsystem: "dispatcher",
			Name:      "switches_total",
			Help:      "Active backend changes, including fallback activations",
		},
		[]string{"from", "to"},
	)

	activeBackend = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aidispatch",
			Subsystem: "dispatcher",
			Name:      "active_backend",
			Help:      "1 for the active backend, 0 for the others",
		},
		[]string{"backend"},
	)

	eventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aidispatch",
			Subsystem: "dispatcher",
			Name:      "events_dropped_total",
			Help:      "Events not delivered to a slow subscriber",
		},
	)
)

func init() {
	prometheus.MustRegister(callsTotal, switchesTotal, activeBackend, eventsDroppedTotal)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
