package resilient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostelscout",
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Outbound requests retried by the resilient transport",
		},
		[]string{"service", "reason"}, // "rate_limited", "server_error", "network"
	)

	responsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostelscout",
			Subsystem: "transport",
			Name:      "responses_total",
			Help:      "Final outcome of outbound calls after retries",
		},
		[]string{"service", "class"},
	)
)
