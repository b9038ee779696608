/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics exposes the gateway's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification outcomes.
const (
	OutcomeValid       = "valid"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prova",
		Name:      "verifications_total",
		Help:      "Proof verification requests by outcome.",
	}, []string{"outcome"})

	authFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prova",
		Name:      "auth_failures_total",
		Help:      "Requests rejected by the API key authenticator.",
	})

	rateLimitRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prova",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)

// IncVerification records one verification request with its outcome.
func IncVerification(outcome string) {
	verificationsTotal.WithLabelValues(outcome).Inc()
}

// IncAuthFailure records one rejected authentication attempt.
func IncAuthFailure() {
	authFailuresTotal.Inc()
}

// IncRateLimitRejection records one rate-limited request.
func IncRateLimitRejection() {
	rateLimitRejectionsTotal.Inc()
}

// Handler returns the prometheus scrape handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
