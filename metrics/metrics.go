// Package metrics exports engine activity to Prometheus. A nil *Metrics is
// a valid no-op.
package metrics

import (
	"errors"
	"time"

	serrors "github.com/mwantia/secstore/data/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// Operations counts engine operations.
	// Labels: op, result=[ok, bad_path, not_found, no_space, overflow, unavailable, not_empty, fault]
	Operations *prometheus.CounterVec

	// Duration tracks operation latency by op.
	Duration *prometheus.HistogramVec

	TrackedItems prometheus.Gauge
	TrackedBytes prometheus.Gauge

	// Restores counts handled restore signals by result.
	Restores *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors. If registerer is nil,
// prometheus.DefaultRegisterer is used. Already registered collectors are
// reused, so engines can be recreated within one process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		Operations: registerOrReuse(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secstore_operations_total",
				Help: "Total engine operations by operation and result",
			},
			[]string{"op", "result"},
		)).(*prometheus.CounterVec),
		Duration: registerOrReuse(registerer, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secstore_operation_duration_seconds",
				Help:    "Engine operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		)).(*prometheus.HistogramVec),
		TrackedItems: registerOrReuse(registerer, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "secstore_tracked_items",
				Help: "Number of items known to the metadata tracker",
			},
		)).(prometheus.Gauge),
		TrackedBytes: registerOrReuse(registerer, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "secstore_tracked_bytes",
				Help: "Sum of item sizes known to the metadata tracker",
			},
		)).(prometheus.Gauge),
		Restores: registerOrReuse(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secstore_restores_total",
				Help: "Total handled restore signals by result",
			},
			[]string{"result"},
		)).(*prometheus.CounterVec),
	}
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}

	m.Operations.WithLabelValues(op, Result(err)).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetTracked(items int, bytes int64) {
	if m == nil {
		return
	}

	m.TrackedItems.Set(float64(items))
	m.TrackedBytes.Set(float64(bytes))
}

func (m *Metrics) ObserveRestore(err error) {
	if m == nil {
		return
	}

	m.Restores.WithLabelValues(Result(err)).Inc()
}

// Result converts an error into its label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, serrors.ErrNotEmpty):
		return "not_empty"
	case errors.Is(err, serrors.ErrReadOnly):
		return "read_only"
	case errors.Is(err, serrors.ErrBadPath):
		return "bad_path"
	case errors.Is(err, serrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, serrors.ErrNoSpace):
		return "no_space"
	case errors.Is(err, serrors.ErrOverflow):
		return "overflow"
	case errors.Is(err, serrors.ErrUnavailable):
		return "unavailable"
	default:
		return "fault"
	}
}

func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
