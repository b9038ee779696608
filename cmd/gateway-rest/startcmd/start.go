/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/xavi-pinsach/prova/component/storageutil/mem"
	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/pkg/controller"
	"github.com/xavi-pinsach/prova/pkg/gateway/anchor"
	"github.com/xavi-pinsach/prova/pkg/gateway/auth"
	"github.com/xavi-pinsach/prova/pkg/gateway/identity"
	"github.com/xavi-pinsach/prova/pkg/gateway/metrics"
	"github.com/xavi-pinsach/prova/pkg/gateway/prover"
	"github.com/xavi-pinsach/prova/pkg/gateway/ratelimit"
	"github.com/xavi-pinsach/prova/pkg/gateway/verify"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
	"github.com/xavi-pinsach/prova/pkg/verifier/client"
)

var logger = log.New("prova/gateway-rest")

const (
	hostFlagName      = "host"
	hostEnvKey        = "PROVA_GATEWAY_HOST"
	hostFlagShorthand = "a"
	hostFlagUsage     = "Host Name:Port to serve the gateway on." +
		" Alternatively, this can be set with the following environment variable: " + hostEnvKey

	verifierURLFlagName  = "verifier-url"
	verifierURLEnvKey    = "PROVA_VERIFIER_URL"
	verifierURLFlagUsage = "Base URL of the verifier executor." +
		" Alternatively, this can be set with the following environment variable: " + verifierURLEnvKey

	internalSecretFlagName  = "internal-api-secret"
	internalSecretEnvKey    = "PROVA_INTERNAL_API_SECRET" //nolint:gosec
	internalSecretFlagUsage = "Shared secret for the internal machine endpoints (optional; they reject" +
		" all requests when unset)." +
		" Alternatively, this can be set with the following environment variable: " + internalSecretEnvKey

	corsOriginsFlagName  = "cors-origins"
	corsOriginsEnvKey    = "PROVA_CORS_ORIGINS"
	corsOriginsFlagUsage = "Comma-separated list of allowed CORS origins. Defaults to * if not set." +
		" Alternatively, this can be set with the following environment variable: " + corsOriginsEnvKey

	rateLimitRequestsFlagName  = "rate-limit-requests"
	rateLimitRequestsEnvKey    = "PROVA_RATE_LIMIT_REQUESTS"
	rateLimitRequestsFlagUsage = "Requests allowed per client per window. Defaults to " +
		rateLimitRequestsDefault + " if not set." +
		" Alternatively, this can be set with the following environment variable: " + rateLimitRequestsEnvKey
	rateLimitRequestsDefault = "100"

	rateLimitWindowFlagName  = "rate-limit-window"
	rateLimitWindowEnvKey    = "PROVA_RATE_LIMIT_WINDOW"
	rateLimitWindowFlagUsage = "Rate limit window duration (e.g. 60s). Defaults to " +
		rateLimitWindowDefault + " if not set." +
		" Alternatively, this can be set with the following environment variable: " + rateLimitWindowEnvKey
	rateLimitWindowDefault = "60s"

	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "PROVA_LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL]. Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey
)

var errMissingHost = errors.New("host not provided")

type gatewayParameters struct {
	server            server
	host              string
	verifierURL       string
	internalSecret    string
	corsOrigins       []string
	rateLimitRequests uint32
	rateLimitWindow   time.Duration
}

// server is an interface over the HTTP server, implemented for tests.
type server interface {
	ListenAndServe(host string, router http.Handler) error
}

// HTTPServer represents an actual HTTP server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler) error {
	return http.ListenAndServe(host, router) //nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(srv server) (*cobra.Command, error) {
	startCmd := createStartCmd(srv)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCmd(srv server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the proof verification gateway",
		Long:  "Start the proof verification gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getParameters(cmd, srv)
			if err != nil {
				return err
			}

			return startGateway(parameters)
		},
	}
}

func getParameters(cmd *cobra.Command, srv server) (*gatewayParameters, error) {
	logLevel, err := getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		if err := setLogLevel(logLevel); err != nil {
			return nil, err
		}
	}

	host, err := getUserSetVar(cmd, hostFlagName, hostEnvKey, false)
	if err != nil {
		return nil, err
	}

	verifierURL, err := getUserSetVar(cmd, verifierURLFlagName, verifierURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	internalSecret, err := getUserSetVar(cmd, internalSecretFlagName, internalSecretEnvKey, true)
	if err != nil {
		return nil, err
	}

	corsOrigins, err := getUserSetVar(cmd, corsOriginsFlagName, corsOriginsEnvKey, true)
	if err != nil {
		return nil, err
	}

	if corsOrigins == "" {
		corsOrigins = "*"
	}

	rateRequests, err := getUserSetVar(cmd, rateLimitRequestsFlagName, rateLimitRequestsEnvKey, true)
	if err != nil {
		return nil, err
	}

	if rateRequests == "" {
		rateRequests = rateLimitRequestsDefault
	}

	requests, err := strconv.ParseUint(rateRequests, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit requests %s: %w", rateRequests, err)
	}

	rateWindow, err := getUserSetVar(cmd, rateLimitWindowFlagName, rateLimitWindowEnvKey, true)
	if err != nil {
		return nil, err
	}

	if rateWindow == "" {
		rateWindow = rateLimitWindowDefault
	}

	window, err := time.ParseDuration(rateWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit window %s: %w", rateWindow, err)
	}

	return &gatewayParameters{
		server:            srv,
		host:              host,
		verifierURL:       verifierURL,
		internalSecret:    internalSecret,
		corsOrigins:       strings.Split(corsOrigins, ","),
		rateLimitRequests: uint32(requests),
		rateLimitWindow:   window,
	}, nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostFlagName, hostFlagShorthand, "", hostFlagUsage)
	startCmd.Flags().StringP(verifierURLFlagName, "", "", verifierURLFlagUsage)
	startCmd.Flags().StringP(internalSecretFlagName, "", "", internalSecretFlagUsage)
	startCmd.Flags().StringP(corsOriginsFlagName, "", "", corsOriginsFlagUsage)
	startCmd.Flags().StringP(rateLimitRequestsFlagName, "", "", rateLimitRequestsFlagUsage)
	startCmd.Flags().StringP(rateLimitWindowFlagName, "", "", rateLimitWindowFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func setLogLevel(level string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level %s: %w", level, err)
	}

	log.SetLevel("", parsed)

	return nil
}

func startGateway(parameters *gatewayParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	provider := mem.NewProvider()

	identities, err := identity.NewService(provider)
	if err != nil {
		return fmt.Errorf("failed to create identity service: %w", err)
	}

	registry, err := vk.NewRegistry(provider)
	if err != nil {
		return fmt.Errorf("failed to create verification key registry: %w", err)
	}

	anchors, err := anchor.NewService(provider)
	if err != nil {
		return fmt.Errorf("failed to create anchor service: %w", err)
	}

	verifierClient := client.New(parameters.verifierURL)

	// the executor may still be loading artifacts; start serving either way
	if version, err := verifierClient.WaitHealthy(context.Background()); err != nil {
		logger.Warnf("verifier executor not reachable at %s, verifications will fail until it recovers: %s",
			parameters.verifierURL, err)
	} else {
		logger.Infof("verifier executor healthy at %s (version %s)", parameters.verifierURL, version)
	}

	handlers := controller.GetRESTHandlers(&controller.Providers{
		Registry:       registry,
		Verifier:       verify.NewService(registry, verifierClient),
		Catalog:        prover.NewCatalog(registry),
		Identities:     identities,
		Anchors:        anchors,
		InternalSecret: parameters.internalSecret,
	})

	router := mux.NewRouter()

	limiter := ratelimit.New(parameters.rateLimitRequests, parameters.rateLimitWindow)
	router.Use(ratelimit.Middleware(limiter))
	router.Use(auth.NewAuthenticator(identities).Middleware())

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	logger.Infof("Starting prova gateway rest on host [%s]", parameters.host)

	handler := cors.New(
		cors.Options{
			AllowedOrigins: parameters.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "X-API-Key"},
		},
	).Handler(router)

	if err := parameters.server.ListenAndServe(parameters.host, handler); err != nil {
		return fmt.Errorf("failed to start prova gateway rest on host [%s], cause: %w", parameters.host, err)
	}

	return nil
}
