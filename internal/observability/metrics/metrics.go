package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AuthRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rutify_auth_registrations_total",
			Help: "Total number of registration attempts.",
		},
		[]string{"result"},
	)

	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rutify_auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rutify_tokens_issued_total",
			Help: "Total number of bearer tokens issued.",
		},
		[]string{"kind", "result"},
	)

	AuthorizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rutify_authorizations_total",
			Help: "Total number of bearer token authorization checks.",
		},
		[]string{"kind", "result"},
	)

	TokensSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rutify_tokens_swept_total",
			Help: "Total number of expired token records removed by the sweep job.",
		},
	)

	NotificationsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rutify_notifications_ingested_total",
			Help: "Total number of notification submissions.",
		},
		[]string{"result"},
	)

	BroadcastPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rutify_broadcast_published_total",
			Help: "Total number of events published to subscribers.",
		},
	)

	BroadcastDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rutify_broadcast_dropped_total",
			Help: "Total number of events dropped for lagging subscribers.",
		},
	)

	WSSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rutify_ws_sessions_active",
			Help: "Number of open websocket subscriber sessions.",
		},
	)
)

// MustRegister registers every collector on the default registry with a
// constant service label.
func MustRegister(serviceName string) {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthRegistrationsTotal,
		AuthLoginsTotal,
		TokensIssuedTotal,
		AuthorizationsTotal,
		TokensSweptTotal,
		NotificationsIngestedTotal,
		BroadcastPublishedTotal,
		BroadcastDroppedTotal,
		WSSessionsActive,
	)
}
