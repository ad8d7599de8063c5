package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_http_requests_total",
		Help: "Total HTTP requests by route and status class",
	}, []string{"route", "code"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geonear_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	PinOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_pin_ops_total",
		Help: "Pin index operations by op and result",
	}, []string{"op", "result"})
	TxRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_tx_retries_total",
		Help: "Store operations retried after a conflict or transient failure",
	}, []string{"op"})
	BackendUnavailableTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_backend_unavailable_total",
		Help: "Operations that exhausted their retries",
	}, []string{"op"})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_geocode_requests_total",
		Help: "Outbound geocoding requests by kind and result",
	}, []string{"kind", "result"})
	GeocodeDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geonear_geocode_duration_ms",
		Help:    "Outbound geocoding duration in milliseconds",
		Buckets: []float64{5, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"kind"})
	GeocodeCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geonear_geocode_cache_total",
		Help: "Geocode cell cache lookups by tier and outcome",
	}, []string{"tier", "outcome"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geonear_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPDurationMs,
		PinOpsTotal,
		TxRetriesTotal,
		BackendUnavailableTotal,
		GeocodeRequestsTotal,
		GeocodeDurationMs,
		GeocodeCacheTotal,
		RateLimitedTotal,
	)
}

// 文档注释：Prometheus 抓取端点，挂载在 <API_BASE>/metrics
func Handler() http.Handler { return promhttp.Handler() }
