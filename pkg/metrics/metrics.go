// Package metrics exposes Prometheus instruments for cycle lifecycle operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ggrc"

// Operation names used as the "operation" label.
const (
	OperationStartCycle = "start_cycle"
	OperationEndCycle   = "end_cycle"
)

// Outcome label values.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeDeclined   = "declined"
	OutcomeSuppressed = "suppressed"
)

// Metrics groups the controller instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	suppressedTotal   prometheus.Counter
	fanOutSize        prometheus.Histogram
	cyclesFinished    prometheus.Counter
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycle_operations_total",
				Help:      "Total number of cycle lifecycle operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_operation_duration_seconds",
				Help:      "Duration of settled cycle lifecycle operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		suppressedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "end_cycle_suppressed_total",
				Help:      "End-cycle triggers ignored because the trigger was busy",
			},
		),
		fanOutSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "end_cycle_fan_out_size",
				Help:      "Number of current cycles finished per end-cycle operation",
				Buckets:   []float64{0, 1, 2, 5, 10, 20},
			},
		),
		cyclesFinished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_finished_total",
				Help:      "Cycles saved with status Finished",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.suppressedTotal,
		m.fanOutSize,
		m.cyclesFinished,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Observe records a settled operation.
func (m *Metrics) Observe(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}

	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) Suppressed() {
	if m == nil {
		return
	}

	m.operationsTotal.WithLabelValues(OperationEndCycle, OutcomeSuppressed).Inc()
	m.suppressedTotal.Inc()
}

func (m *Metrics) FanOut(size int) {
	if m == nil {
		return
	}

	m.fanOutSize.Observe(float64(size))
}

func (m *Metrics) CycleFinished() {
	if m == nil {
		return
	}

	m.cyclesFinished.Inc()
}
