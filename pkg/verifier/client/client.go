/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package client implements the gateway-side transport to a verifier
// executor.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/pkg/verifier/api"
)

var logger = log.New("prova/verifier-client")

const (
	defaultRequestTimeout = 30 * time.Second

	healthRetryInterval = 2 * time.Second
	healthRetryAttempts = 3
)

// ErrExecutorUnavailable indicates a transport-level failure talking to the
// executor. It is never used for a completed verification with valid=false.
var ErrExecutorUnavailable = errors.New("verifier executor unavailable")

// Client talks to one verifier executor over HTTP+JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Opt customizes the client.
type Opt func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Opt {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the executor at baseURL.
func New(baseURL string, opts ...Opt) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Health probes the executor once and returns its reported prover version.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+api.HealthPath, nil)
	if err != nil {
		return "", fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrExecutorUnavailable, err)
	}

	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: health returned status %d", ErrExecutorUnavailable, resp.StatusCode)
	}

	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", fmt.Errorf("%w: decode health response: %s", ErrExecutorUnavailable, err)
	}

	if !health.Healthy {
		return "", fmt.Errorf("%w: executor reported unhealthy", ErrExecutorUnavailable)
	}

	return health.Version, nil
}

// WaitHealthy probes the executor up to three times with a constant two
// second interval. The version of the first successful probe is returned.
func (c *Client) WaitHealthy(ctx context.Context) (string, error) {
	var version string

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(healthRetryInterval), healthRetryAttempts-1), ctx)

	err := backoff.RetryNotify(
		func() error {
			var healthErr error

			version, healthErr = c.Health(ctx)

			return healthErr
		},
		policy,
		func(err error, duration time.Duration) {
			logger.Warnf("executor health check failed, retrying in %s: %s", duration, err)
		})
	if err != nil {
		return "", err
	}

	return version, nil
}

// Verify submits a proof to the executor. A transport fault returns an error
// wrapping ErrExecutorUnavailable; an executor verdict, valid or not, returns
// a response.
func (c *Client) Verify(ctx context.Context, request *api.VerifyRequest) (*api.VerifyResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+api.VerifyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutorUnavailable, err)
	}

	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: verify returned status %d", ErrExecutorUnavailable, resp.StatusCode)
	}

	var verdict api.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %s", ErrExecutorUnavailable, err)
	}

	return &verdict, nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logger.Errorf("failed to close response body: %s", err)
	}
}
