package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "launcher"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Commands received from the presentation layer.",
		}, []string{"command"},
	)
	statusEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "status_events_total",
			Help:      "Status events emitted per channel.",
		}, []string{"channel"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between daemon states.",
		}, []string{"role", "from", "to"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "current_state",
			Help:      "Current state of each daemon (1 = active state, 0 = inactive).",
		}, []string{"role", "state"},
	)
	spawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "spawn_failures_total",
			Help:      "Daemon starts that failed before the process ran.",
		}, []string{"role"},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "exits_total",
			Help:      "Daemon exits by outcome (clean, error, stopped).",
		}, []string{"role", "outcome"},
	)
	readiness = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "readiness_seconds",
			Help:      "Time from spawn until the readiness marker was seen.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"role"},
	)
	remoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "explorer",
			Name:      "requests_total",
			Help:      "Explorer API calls by endpoint and result (ok, error).",
		}, []string{"endpoint", "result"},
	)
	faucetThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "explorer",
			Name:      "faucet_throttled_total",
			Help:      "Faucet requests rejected by the local rate limit.",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{commands, statusEvents, stateTransitions, currentStates, spawnFailures, exits, readiness, remoteRequests, faucetThrottled}
}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range collectors() {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves metrics from the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Helpers below no-op until Register has succeeded.

func IncCommand(command string) {
	if regOK.Load() {
		commands.WithLabelValues(command).Inc()
	}
}

func IncStatusEvent(channel string) {
	if regOK.Load() {
		statusEvents.WithLabelValues(channel).Inc()
	}
}

func RecordStateTransition(role, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(role, from, to).Inc()
		currentStates.WithLabelValues(role, from).Set(0)
		currentStates.WithLabelValues(role, to).Set(1)
	}
}

func IncSpawnFailure(role string) {
	if regOK.Load() {
		spawnFailures.WithLabelValues(role).Inc()
	}
}

func IncExit(role, outcome string) {
	if regOK.Load() {
		exits.WithLabelValues(role, outcome).Inc()
	}
}

func ObserveReadiness(role string, seconds float64) {
	if regOK.Load() {
		readiness.WithLabelValues(role).Observe(seconds)
	}
}

func IncRemoteRequest(endpoint string, ok bool) {
	if regOK.Load() {
		result := "ok"
		if !ok {
			result = "error"
		}
		remoteRequests.WithLabelValues(endpoint, result).Inc()
	}
}

func IncFaucetThrottled() {
	if regOK.Load() {
		faucetThrottled.Inc()
	}
}
