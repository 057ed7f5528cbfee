package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StravaRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stridedash", Name: "strava_requests_total", Help: "Number of Strava API requests by endpoint and outcome."},
		[]string{"endpoint", "outcome"},
	)
	TokenRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "stridedash", Name: "token_refreshes_total", Help: "Number of OAuth token refresh exchanges performed."},
	)
	ActivitiesSynced = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "stridedash", Name: "activities_synced_total", Help: "Number of activity records written by sync runs."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stridedash", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stridedash", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(StravaRequests)
	reg.MustRegister(TokenRefreshes)
	reg.MustRegister(ActivitiesSynced)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
