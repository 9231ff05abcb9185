package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_duplicate_total",
		Help: "Total number of booking requests deduplicated by idempotency key",
	})

	BookingsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_failed_total",
		Help: "Total number of failed booking requests",
	}, []string{"reason"})

	CalendarSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_total",
		Help: "Total number of calendar sync attempts by result",
	}, []string{"result"})

	CalendarSyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_sync_latency_seconds",
		Help:    "Latency of remote calendar event creation",
		Buckets: prometheus.DefBuckets,
	})

	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_token_refresh_total",
		Help: "Total number of OAuth access token refresh exchanges by result",
	}, []string{"result"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of confirmation email sends by recipient and result",
	}, []string{"recipient", "result"})

	EmailSendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "email_send_latency_seconds",
		Help:    "Latency of email delivery API calls",
		Buckets: prometheus.DefBuckets,
	})

	SyncRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_retries_total",
		Help: "Total number of out-of-band calendar sync retries by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
