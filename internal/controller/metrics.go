package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"modeswitch/internal/mode"
)

// Metrics collects controller metrics in a dedicated Prometheus registry.
type Metrics struct {
	switches         *prometheus.CounterVec
	switchDuration   prometheus.Histogram
	switchInProgress prometheus.Gauge
	stateTransitions *prometheus.CounterVec

	serviceOps        *prometheus.CounterVec
	serviceOpDuration *prometheus.HistogramVec
	recoveries        *prometheus.CounterVec

	externalChanges prometheus.Counter
	authoredChanges *prometheus.CounterVec
	activeMode      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates the controller metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "modeswitch"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.switches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "switches_total",
			Help:      "Total number of mode switch requests by outcome",
		},
		[]string{"target", "outcome", "kind"},
	)

	m.switchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "switch_duration_seconds",
			Help:      "Duration of mode switches that ran the full protocol",
			Buckets:   []float64{1, 2.5, 5, 7.5, 10, 15, 30, 60, 120},
		},
	)

	m.switchInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "switch_in_progress",
			Help:      "1 while a mode switch is running",
		},
	)

	m.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of switch state machine transitions",
		},
		[]string{"to_state"},
	)

	m.serviceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_operations_total",
			Help:      "Total number of managed service operations",
		},
		[]string{"operation", "status"},
	)

	m.serviceOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_operation_duration_seconds",
			Help:      "Duration of managed service operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.recoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Total number of recovery start attempts",
		},
		[]string{"status"},
	)

	m.externalChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installed_artifact_external_changes_total",
			Help:      "Changes to the installed artifact made outside of a switch",
		},
	)

	m.authoredChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authored_artifact_changes_total",
			Help:      "Changes to authored artifacts seen on disk",
		},
		[]string{"mode"},
	)

	m.activeMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detected_mode",
			Help:      "1 for the mode most recently detected in the installed artifact",
		},
		[]string{"mode"},
	)

	m.registry.MustRegister(
		m.switches,
		m.switchDuration,
		m.switchInProgress,
		m.stateTransitions,
		m.serviceOps,
		m.serviceOpDuration,
		m.recoveries,
		m.externalChanges,
		m.authoredChanges,
		m.activeMode,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) switchFinished(res SwitchResult, ranProtocol bool) {
	outcome := "succeeded"
	kind := ""
	if !res.Succeeded {
		outcome = "failed"
		if res.Error != nil {
			kind = string(res.Error.Kind)
		}
	}
	m.switches.WithLabelValues(string(res.RequestedMode), outcome, kind).Inc()
	if ranProtocol {
		m.switchDuration.Observe(res.Duration.Seconds())
	}
}

func (m *Metrics) setInProgress(running bool) {
	if running {
		m.switchInProgress.Set(1)
	} else {
		m.switchInProgress.Set(0)
	}
}

func (m *Metrics) transition(to State) {
	m.stateTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) serviceOp(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.serviceOps.WithLabelValues(op, status).Inc()
	m.serviceOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) recovery(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.recoveries.WithLabelValues(status).Inc()
}

func (m *Metrics) externalChange() {
	m.externalChanges.Inc()
}

func (m *Metrics) authoredChange(md mode.Mode) {
	m.authoredChanges.WithLabelValues(string(md)).Inc()
}

func (m *Metrics) detected(modes []string, current string) {
	for _, name := range modes {
		if name == current {
			m.activeMode.WithLabelValues(name).Set(1)
		} else {
			m.activeMode.WithLabelValues(name).Set(0)
		}
	}
}
