package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioneer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "auctioneer_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	VendorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioneer_vendor_requests_total",
			Help: "Calls made to the avatar video vendor, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	VendorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "auctioneer_vendor_request_duration_seconds",
			Help: "Avatar video vendor call latency in seconds",
		},
		[]string{"operation"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioneer_avatar_uploads_total",
			Help: "Avatar image uploads, by outcome",
		},
		[]string{"outcome"},
	)

	// Fallbacks counts playbacks that switched to local speech.
	// reason is "expected" (vendor not configured) or "degraded".
	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auctioneer_speech_fallbacks_total",
			Help: "Playbacks that fell back to local speech synthesis",
		},
		[]string{"reason"},
	)

	ActivePolls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auctioneer_active_polls",
			Help: "Number of job pollers currently running",
		},
	)
)
