package link

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipgrid_link_sessions_total",
		Help: "Login sessions by final outcome.",
	}, []string{"outcome"})

	metricPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipgrid_link_polls_total",
		Help: "Status polls issued against login sessions.",
	})

	metricPollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipgrid_link_poll_failures_total",
		Help: "Status polls that returned an error.",
	})
)
