package llm

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostelscout",
			Name:      "llm_calls_total",
			Help:      "Total completion service calls",
		},
		[]string{"provider", "model", "status"},
	)

	llmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hostelscout",
			Name:      "llm_duration_seconds",
			Help:      "Duration of completion calls including retries",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"provider", "model"},
	)
)

func observeCall(provider, model string, resp *http.Response, err error, start time.Time) {
	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	llmCallsTotal.WithLabelValues(provider, model, status).Inc()
	llmDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}
