package enforce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Deadline lifecycle counters, labelled by strategy.
var (
	armedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timebox_deadlines_armed_total",
		Help: "Total number of deadlines armed, by enforcement strategy",
	}, []string{"strategy"})

	firedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timebox_deadlines_fired_total",
		Help: "Total number of deadlines that elapsed before the runnable finished, by enforcement strategy",
	}, []string{"strategy"})

	disarmedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timebox_deadlines_disarmed_total",
		Help: "Total number of deadlines disarmed after the runnable finished in time, by enforcement strategy",
	}, []string{"strategy"})

	injectionRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timebox_injection_retries_total",
		Help: "Total number of cancellation injection attempts that were not observed by the worker and had to be retried",
	})

	injectionAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timebox_injection_abandoned_total",
		Help: "Total number of workers abandoned after the injection retry bound was exhausted",
	})

	stopFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timebox_worker_stop_failures_total",
		Help: "Total number of stop requests that a worker failed to acknowledge after a deadline miss",
	})
)
