/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ratelimit provides per-identity admission control for the gateway.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xavi-pinsach/prova/pkg/gateway/metrics"
)

// cleanupThreshold is the bucket-count high-water mark above which stale buckets
// are pruned on the next admission check.
const cleanupThreshold = 10000

// Limiter applies a fixed-window token bucket per string key. Each key owns an
// independent bucket holding rate tokens; once the window elapses the bucket is
// reset to full. There is no fractional refill.
type Limiter struct {
	buckets map[string]*tokenBucket
	rate    uint32
	window  time.Duration
	mu      sync.RWMutex
}

type tokenBucket struct {
	tokens     uint32
	lastRefill time.Time
}

// New returns a Limiter admitting up to rate requests per key per window.
func New(rate uint32, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		window:  window,
	}
}

// Allow reports whether one request for the given key is admitted now.
func (l *Limiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *Limiter) allowAt(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) > cleanupThreshold {
		l.cleanupExpired(now)
	}

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: l.rate, lastRefill: now}
		l.buckets[key] = bucket
	}

	if now.Sub(bucket.lastRefill) >= l.window {
		bucket.tokens = l.rate
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}

	return false
}

// cleanupExpired drops buckets idle for more than two windows. Caller must hold the write lock.
func (l *Limiter) cleanupExpired(now time.Time) {
	expiry := 2 * l.window

	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastRefill) >= expiry {
			delete(l.buckets, key)
		}
	}
}

// Key derives the rate-limit key for a request: the API key header when present,
// otherwise the first forwarded client address, otherwise "unknown".
func Key(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}

	return "unknown"
}

// Middleware rejects requests over the per-key budget with 429 before any further handling.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(Key(r)) {
				metrics.IncRateLimitRejection()

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
