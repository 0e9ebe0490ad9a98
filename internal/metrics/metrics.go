// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	proxiedCallsCounter        *prometheus.CounterVec
	upstreamDurationMetric     prometheus.Histogram
	rateLimitRejectionsCounter prometheus.Counter
	accessDenialsCounter       *prometheus.CounterVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		proxiedCallsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxied_calls_total",
				Help: "Total number of proxied upstream calls by status class.",
			},
			[]string{"class"},
		)

		upstreamDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upstream_call_duration_seconds",
				Help:    "Duration of upstream HTTP calls in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		rateLimitRejectionsCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_rejections_total",
				Help: "Total number of calls rejected by the rate limiter.",
			},
		)

		accessDenialsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_denials_total",
				Help: "Total number of calls denied by the access gate by reason.",
			},
			[]string{"reason"},
		)

		prometheus.MustRegister(
			proxiedCallsCounter,
			upstreamDurationMetric,
			rateLimitRejectionsCounter,
			accessDenialsCounter,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "error"} {
			proxiedCallsCounter.WithLabelValues(class)
		}
		for _, reason := range []string{"inactive", "no_department", "rate_limited", "check_failed"} {
			accessDenialsCounter.WithLabelValues(reason)
		}
	})
}

func IncProxiedCall(class string) {
	Init()
	proxiedCallsCounter.WithLabelValues(class).Inc()
}

func ObserveUpstreamDuration(d time.Duration) {
	Init()
	upstreamDurationMetric.Observe(d.Seconds())
}

func IncRateLimitRejection() {
	Init()
	rateLimitRejectionsCounter.Inc()
}

func IncAccessDenial(reason string) {
	Init()
	accessDenialsCounter.WithLabelValues(reason).Inc()
}
