package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus instrumentation for one session's message
// exchange. All methods are nil-safe: calls on a nil *Metrics are no-ops,
// so tests and callers that don't care about metrics may pass a nil
// Registerer to New.
type Metrics struct {
	attemptsTotal          prometheus.Counter
	commsErrorsTotal       prometheus.Counter
	badNonceTotal          prometheus.Counter
	nonceResyncFailedTotal prometheus.Counter
	faultsTotal            prometheus.Counter
}

// NewMetrics creates and registers session metrics with reg. If reg is
// nil, metrics are created but not registered, matching the nil-safe
// construction pattern used throughout this core.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "podcomms",
			Subsystem: "session",
			Name:      "send_attempts_total",
			Help:      "Total number of message-exchange send attempts.",
		}),
		commsErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "podcomms",
			Subsystem: "session",
			Name:      "comms_errors_total",
			Help:      "Total number of transport-level send failures.",
		}),
		badNonceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "podcomms",
			Subsystem: "session",
			Name:      "bad_nonce_total",
			Help:      "Total number of badNonce responses requiring a resync.",
		}),
		nonceResyncFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "podcomms",
			Subsystem: "session",
			Name:      "nonce_resync_failed_total",
			Help:      "Total number of exchanges that exhausted both resync attempts.",
		}),
		faultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "podcomms",
			Subsystem: "session",
			Name:      "pod_faults_total",
			Help:      "Total number of first-observed pod faults.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.attemptsTotal, m.commsErrorsTotal, m.badNonceTotal, m.nonceResyncFailedTotal, m.faultsTotal,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}

	return m
}

func (m *Metrics) recordAttempt() {
	if m == nil {
		return
	}
	m.attemptsTotal.Inc()
}

func (m *Metrics) recordCommsError() {
	if m == nil {
		return
	}
	m.commsErrorsTotal.Inc()
}

func (m *Metrics) recordBadNonce() {
	if m == nil {
		return
	}
	m.badNonceTotal.Inc()
}

func (m *Metrics) recordNonceResyncFailed() {
	if m == nil {
		return
	}
	m.nonceResyncFailedTotal.Inc()
}

func (m *Metrics) recordFault() {
	if m == nil {
		return
	}
	m.faultsTotal.Inc()
}
