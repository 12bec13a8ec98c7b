// Package metrics holds the Prometheus collectors of the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by route, method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivelink_http_requests_total",
		Help: "The total number of HTTP requests",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration tracks request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drivelink_http_request_duration_seconds",
		Help:    "The HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// LinkAttemptsTotal counts callback exchanges by outcome.
	LinkAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivelink_link_attempts_total",
		Help: "The total number of account link attempts",
	}, []string{"status"})

	// TokenValidationsTotal counts validate calls by outcome (live, refreshed, failed).
	TokenValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivelink_token_validations_total",
		Help: "The total number of access token validations",
	}, []string{"status"})

	// RevocationsTotal counts revoke calls by outcome.
	RevocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivelink_revocations_total",
		Help: "The total number of token revocations",
	}, []string{"status"})
)
