package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the decoder's Prometheus counters.
type Metrics struct {
	bytesRead      prometheus.Counter
	packets        prometheus.Counter
	discardedBytes prometheus.Counter
	resyncs        prometheus.Counter
	readErrors     prometheus.Counter
	droppedSamples prometheus.Counter
	paused         prometheus.Gauge
}

// NewMetrics creates the decoder metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemetry",
			Subsystem: "decoder",
			Name:      "bytes_read_total",
			Help:      "Total number of bytes read from the source",
		}),
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemetry",
			Subsystem: "decoder",
			Name:      "packets_total",
			Help:      "Total number of packets decoded",
		}),
		discardedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemetry",
			Subsystem: "decoder",
			Name:      "discarded_bytes_total",
			Help:      "Total number of bytes dropped while searching for a header",
		}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemetry",
			Subsystem: "decoder",
			Name:      "resyncs_total",
			Help:      "Total number of resynchronization discards",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemetry",
			Subsystem: "decoder",
			Name:      "read_errors_total",
			Help:      "Total number of failed source reads",
		}),
		droppedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemetry",
			Subsystem: "decoder",
			Name:      "subscriber_drops_total",
			Help:      "Total number of samples not delivered to a full subscriber",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "telemetry",
			Subsystem: "decoder",
			Name:      "paused",
			Help:      "1 while polling is paused",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.bytesRead, m.packets, m.discardedBytes, m.resyncs, m.readErrors, m.droppedSamples, m.paused,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
