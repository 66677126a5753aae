package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsRecordSessionConnectedAndDisconnected(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	m.RecordSessionConnected()
	m.RecordSessionConnected()
	if got := gaugeValue(t, m.SessionsConnected); got != 2 {
		t.Fatalf("SessionsConnected = %v, want 2", got)
	}
	m.RecordSessionDisconnected()
	if got := gaugeValue(t, m.SessionsConnected); got != 1 {
		t.Fatalf("SessionsConnected = %v, want 1", got)
	}
}

func TestMetricsRecordPacketDecoded(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	m.RecordPacketDecoded("NotificationArmDisarm")
	m.RecordPacketDecoded("NotificationArmDisarm")
	if got := counterValue(t, m.PacketsDecoded.WithLabelValues("NotificationArmDisarm")); got != 2 {
		t.Fatalf("PacketsDecoded = %v, want 2", got)
	}
}

func TestMetricsRecordTransactionResult(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	m.RecordTransactionResult("CommandResponse", "timeout")
	if got := counterValue(t, m.TransactionResult.WithLabelValues("CommandResponse", "timeout")); got != 1 {
		t.Fatalf("TransactionResult = %v, want 1", got)
	}
}

func TestNewLoggerParsesLevel(t *testing.T) {
	log := NewLogger("debug")
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v, want debug", log.GetLevel())
	}
}

func TestNewLoggerFallsBackToInfoOnBadLevel(t *testing.T) {
	log := NewLogger("not-a-level")
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info fallback", log.GetLevel())
	}
}
