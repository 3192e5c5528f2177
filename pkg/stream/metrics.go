package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFramesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipgrid",
		Name:      "stream_frames_routed_total",
		Help:      "Decoded frames routed to the session handler, by event type.",
	}, []string{"event_type"})
	metricFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shipgrid",
		Name:      "stream_frames_dropped_total",
		Help:      "Frames dropped because their payload failed to decode.",
	})
	metricVariants = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shipgrid",
		Name:      "stream_variants_total",
		Help:      "Variants received across all streaming sessions.",
	})
	metricRecoverableErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shipgrid",
		Name:      "stream_recoverable_errors_total",
		Help:      "Recoverable per-variant errors reported by the server.",
	})
	metricSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipgrid",
		Name:      "stream_sessions_total",
		Help:      "Streaming sessions by outcome (complete, error, cancelled).",
	}, []string{"outcome"})
)
