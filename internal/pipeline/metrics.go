package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	utterancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voiced",
			Subsystem: "pipeline",
			Name:      "utterances_total",
			Help:      "Total utterances by dispatch outcome",
		},
		[]string{"outcome"},
	)

	actionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voiced",
			Subsystem: "pipeline",
			Name:      "action_failures_total",
			Help:      "Total action invocations that returned an error",
		},
	)
)

func init() {
	prometheus.MustRegister(utterancesTotal, actionFailures)
}

const (
	outcomeDispatched   = "dispatched"
	outcomeUnrecognized = "unrecognized"
	outcomeEmpty        = "empty"
	outcomeError        = "error"
)
