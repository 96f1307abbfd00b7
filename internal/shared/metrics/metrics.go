package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Media validation metrics
	MediaBatchesTotal   *prometheus.CounterVec
	MediaFilesRejected  *prometheus.CounterVec
	ProbeDuration       prometheus.Histogram
	ProbeFallbacksTotal prometheus.Counter

	// Commerce metrics
	PromoValidationsTotal *prometheus.CounterVec
	CheckoutsTotal        *prometheus.CounterVec
	SubscriptionsByTier   *prometheus.GaugeVec

	// Background processing metrics
	ThumbnailJobsTotal *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path", "status"},
		),

		MediaBatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_batches_total",
				Help: "Total number of validated media batches",
			},
			[]string{"kind", "tier", "result"},
		),
		MediaFilesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_files_rejected_total",
				Help: "Total number of rejected media files",
			},
			[]string{"kind", "reason"},
		),
		ProbeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "video_probe_duration_seconds",
				Help:    "Wall time spent probing video metadata",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		ProbeFallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "video_probe_fallbacks_total",
				Help: "Total number of duration probes that fell back to the default",
			},
		),

		PromoValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promo_validations_total",
				Help: "Total number of promo code validations",
			},
			[]string{"result"},
		),
		CheckoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkouts_total",
				Help: "Total number of checkout initiations",
			},
			[]string{"plan_type", "result"},
		),
		SubscriptionsByTier: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "subscriptions_by_tier",
				Help: "Number of subscriptions by tier",
			},
			[]string{"tier", "status"},
		),

		ThumbnailJobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbnail_jobs_total",
				Help: "Total number of thumbnail generation jobs",
			},
			[]string{"status"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "job_duration_seconds",
				Help:    "Background job processing duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"type", "status"},
		),

		WebSocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections",
				Help: "Number of active WebSocket connections",
			},
		),
	}

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, responseSize int64) {
	status := statusCodeToString(statusCode)

	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	if responseSize > 0 {
		m.HTTPResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
	}
}

// RecordMediaBatch records the outcome of a media batch validation
func (m *Metrics) RecordMediaBatch(kind, tier string, valid bool) {
	result := "accepted"
	if !valid {
		result = "rejected"
	}
	m.MediaBatchesTotal.WithLabelValues(kind, tier, result).Inc()
}

// RecordFileRejection records a per-file rejection reason
func (m *Metrics) RecordFileRejection(kind, reason string) {
	m.MediaFilesRejected.WithLabelValues(kind, reason).Inc()
}

// RecordProbe records a duration probe result
func (m *Metrics) RecordProbe(duration time.Duration, fellBack bool) {
	m.ProbeDuration.Observe(duration.Seconds())
	if fellBack {
		m.ProbeFallbacksTotal.Inc()
	}
}

// RecordPromoValidation records a promo validation result
func (m *Metrics) RecordPromoValidation(result string) {
	m.PromoValidationsTotal.WithLabelValues(result).Inc()
}

// RecordCheckout records a checkout initiation
func (m *Metrics) RecordCheckout(planType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.CheckoutsTotal.WithLabelValues(planType, result).Inc()
}

// RecordThumbnailJob records a thumbnail job outcome
func (m *Metrics) RecordThumbnailJob(status string, duration time.Duration) {
	m.ThumbnailJobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues("thumbnail", status).Observe(duration.Seconds())
}

// RecordWebSocketConnection records WebSocket connection change
func (m *Metrics) RecordWebSocketConnection(connected bool) {
	if connected {
		m.WebSocketConnections.Inc()
	} else {
		m.WebSocketConnections.Dec()
	}
}

// statusCodeToString converts HTTP status code to category string
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
