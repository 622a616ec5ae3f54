// Package metrics exposes the supervisor's Prometheus collectors
// (SPEC_FULL.md DOMAIN STACK item 1). All functions no-op until Register
// has been called, so the supervisor runs with metrics disabled by default.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	childStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supervisr",
			Subsystem: "child",
			Name:      "starts_total",
			Help:      "Number of StartProcessus spawns issued.",
		}, []string{"program"},
	)
	childRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supervisr",
			Subsystem: "child",
			Name:      "retries_total",
			Help:      "Number of RetryStartProcessus autorestart spawns.",
		}, []string{"program"},
	)
	childStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supervisr",
			Subsystem: "child",
			Name:      "stops_total",
			Help:      "Number of graceful stop signals sent to a child.",
		}, []string{"program"},
	)
	childKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supervisr",
			Subsystem: "child",
			Name:      "kills_total",
			Help:      "Number of force-kills on stoptime expiry.",
		}, []string{"program"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supervisr",
			Subsystem: "child",
			Name:      "state_transitions_total",
			Help:      "Number of child status transitions.",
		}, []string{"program", "from", "to"},
	)
	childrenByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "supervisr",
			Subsystem: "child",
			Name:      "count",
			Help:      "Current number of child records per program and status.",
		}, []string{"program", "status"},
	)
	reloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supervisr",
			Subsystem: "reload",
			Name:      "total",
			Help:      "Number of reload instructions processed, by outcome.",
		}, []string{"result"},
	)
)

// Register registers all collectors with r. Safe to call more than once;
// calls after the first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{childStarts, childRetries, childStops, childKills, stateTransitions, childrenByStatus, reloads}
	for _, c := range cs {
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

// Handler serves the default Prometheus gatherer over HTTP.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(program string) {
	if regOK.Load() {
		childStarts.WithLabelValues(program).Inc()
	}
}

func IncRetry(program string) {
	if regOK.Load() {
		childRetries.WithLabelValues(program).Inc()
	}
}

func IncStop(program string) {
	if regOK.Load() {
		childStops.WithLabelValues(program).Inc()
	}
}

func IncKill(program string) {
	if regOK.Load() {
		childKills.WithLabelValues(program).Inc()
	}
}

func RecordTransition(program, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(program, from, to).Inc()
	}
}

func SetChildCount(program, status string, n int) {
	if regOK.Load() {
		childrenByStatus.WithLabelValues(program, status).Set(float64(n))
	}
}

func IncReload(result string) {
	if regOK.Load() {
		reloads.WithLabelValues(result).Inc()
	}
}
