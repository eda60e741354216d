// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package metrics provides Prometheus instrumentation for Reelpulse:
// engagement ingest throughput, stats store latency, ranking refresh
// cadence, feed assembly, swipe sessions, and API request vectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engagement ingest metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_events_ingested_total",
			Help: "Total number of accepted engagement events",
		},
		[]string{"event_type"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_events_rejected_total",
			Help: "Total number of rejected engagement events",
		},
		[]string{"reason"},
	)

	ViewsFinalizedByWatchdog = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_views_watchdog_finalized_total",
			Help: "Views finalized by the watchdog from last-known progress",
		},
	)

	// Stats store metrics
	StatsApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stats_apply_duration_seconds",
			Help:    "Duration of per-video stats mutations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	StatsApplyRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_apply_retries_total",
			Help: "Total stats persistence retries after transient failures",
		},
	)

	StatsPersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_persist_errors_total",
			Help: "Total stats persistence failures surfaced past the retry budget",
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stats_persist_breaker_open",
			Help: "1 when the persistence circuit breaker is open, 0 otherwise",
		},
	)

	// Ranking index metrics
	RankingRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_refresh_duration_seconds",
			Help:    "Duration of a full ranking materialization sweep in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RankingRefreshEpoch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranking_refresh_epoch",
			Help: "Monotonic epoch of the last successful ranking refresh",
		},
	)

	RankingRefreshFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_refresh_failures_total",
			Help: "Ranking refresh sweeps that failed and left the last-good materialization serving",
		},
	)

	RankingBoardSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ranking_board_entries",
			Help: "Entries per materialized ranking board",
		},
		[]string{"scope"},
	)

	// Feed metrics
	FeedRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_request_duration_seconds",
			Help:    "Duration of personalized feed assembly in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	// Session metrics
	SwipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_swipes_total",
			Help: "Total swipes processed by direction",
		},
		[]string{"direction"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Currently active swipe sessions",
		},
	)

	SessionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_reaped_total",
			Help: "Sessions discarded after the reconnect grace period",
		},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Currently connected ranking live-update clients",
		},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)
)

// RecordAPIRequest records metrics for a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngest records an accepted engagement event.
func RecordIngest(eventType string) {
	EventsIngested.WithLabelValues(eventType).Inc()
}

// RecordReject records a rejected engagement event with its reason.
func RecordReject(reason string) {
	EventsRejected.WithLabelValues(reason).Inc()
}

// RecordSwipe records a processed swipe by direction.
func RecordSwipe(direction string) {
	SwipesTotal.WithLabelValues(direction).Inc()
}

// RecordRankingRefresh records a completed refresh sweep.
func RecordRankingRefresh(epoch int64, duration time.Duration) {
	RankingRefreshEpoch.Set(float64(epoch))
	RankingRefreshDuration.Observe(duration.Seconds())
}

// SetBoardSize records the entry count for a materialized board scope.
func SetBoardSize(scope string, n int) {
	RankingBoardSize.WithLabelValues(scope).Set(float64(n))
}

// FormatStatusCode converts an HTTP status code to its label value.
func FormatStatusCode(code int) string {
	return strconv.Itoa(code)
}
