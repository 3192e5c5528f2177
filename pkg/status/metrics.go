package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipgrid_status_fetches_total",
		Help: "Status refreshes that actually hit the server.",
	})

	metricFetchesShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipgrid_status_fetches_shared_total",
		Help: "Status fetch calls that piggybacked on an in-flight request.",
	})

	metricFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipgrid_status_fetch_failures_total",
		Help: "Status refreshes that failed.",
	})

	metricMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipgrid_status_marks_total",
		Help: "Optimistic local status marks by kind.",
	}, []string{"kind"})
)
