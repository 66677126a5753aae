// Package telemetry carries the module's ambient observability stack:
// structured logging (github.com/sirupsen/logrus, threaded as a
// *logrus.Entry into every component) and a Prometheus metrics surface for
// ops visibility: sessions connected, packets decoded by command, and
// transaction outcomes (successes, timeouts, nacks). Grounded on
// runZeroInc-sockstats/pkg/exporter's custom prometheus.Collector shape,
// generalized here to a flat set of Counter/Gauge vectors since this
// module's metrics aren't derived from a polled kernel struct the way
// TCPInfoCollector's are.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics bundles every Prometheus collector this module exports. Callers
// register it once against a prometheus.Registerer (or the default
// registry); cmd/dscbridged records into it from the session registry's
// lifecycle events and each session's record and transaction-result hooks.
type Metrics struct {
	SessionsConnected prometheus.Gauge
	PacketsDecoded    *prometheus.CounterVec
	TransactionResult *prometheus.CounterVec
}

// NewMetrics constructs the collector set without registering it.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dscbridge",
			Name:      "sessions_connected",
			Help:      "Number of panel sessions currently connected.",
		}),
		PacketsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dscbridge",
			Name:      "packets_decoded_total",
			Help:      "Inbound packets successfully decoded, by command name.",
		}, []string{"command"}),
		TransactionResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dscbridge",
			Name:      "transactions_total",
			Help:      "Completed transactions, by pattern and outcome.",
		}, []string{"pattern", "outcome"}),
	}
}

// MustRegister registers every collector in m against reg, panicking on a
// duplicate registration: a startup-time wiring bug, matching the
// panic-on-duplicate discipline internal/message.Registry.MustRegisterAll
// applies to the command catalogue.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.SessionsConnected, m.PacketsDecoded, m.TransactionResult)
}

// RecordSessionConnected/RecordSessionDisconnected adjust the live session
// gauge; wired as a panel.Registry lifecycle subscriber.
func (m *Metrics) RecordSessionConnected()    { m.SessionsConnected.Inc() }
func (m *Metrics) RecordSessionDisconnected() { m.SessionsConnected.Dec() }

// RecordPacketDecoded increments the per-command decode counter.
func (m *Metrics) RecordPacketDecoded(command string) {
	m.PacketsDecoded.WithLabelValues(command).Inc()
}

// RecordTransactionResult increments the per-pattern outcome counter;
// outcome is one of "success", "timeout", "nack", "unexpected", "cancelled",
// or "error".
func (m *Metrics) RecordTransactionResult(pattern, outcome string) {
	m.TransactionResult.WithLabelValues(pattern, outcome).Inc()
}

// NewLogger returns a base *logrus.Logger configured the way
// runZeroInc-sockstats/cmd/get/main.go configures its own: text formatter,
// level driven by the level string (falls back to Info on a bad value
// rather than failing startup over a logging misconfiguration).
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
