/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/pkg/verifier/engine"
	"github.com/xavi-pinsach/prova/pkg/verifier/manifest"
	verifierrest "github.com/xavi-pinsach/prova/pkg/verifier/rest"
)

var logger = log.New("prova/verifier-rest")

const (
	hostFlagName      = "host"
	hostEnvKey        = "PROVA_VERIFIER_HOST"
	hostFlagShorthand = "a"
	hostFlagUsage     = "Host Name:Port to serve the verifier executor on." +
		" Alternatively, this can be set with the following environment variable: " + hostEnvKey

	artifactsDirFlagName  = "artifacts-dir"
	artifactsDirEnvKey    = "PROVA_ARTIFACTS_DIR"
	artifactsDirFlagUsage = "Directory holding the verifier manifest and binaries. Defaults to " +
		artifactsDirDefault + " if not set." +
		" Alternatively, this can be set with the following environment variable: " + artifactsDirEnvKey
	artifactsDirDefault = "/artifacts"

	execTimeoutFlagName  = "exec-timeout"
	execTimeoutEnvKey    = "PROVA_EXEC_TIMEOUT"
	execTimeoutFlagUsage = "Maximum duration for a single verification run (e.g. 30s)." +
		" Defaults to no limit if not set." +
		" Alternatively, this can be set with the following environment variable: " + execTimeoutEnvKey

	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "PROVA_LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL]. Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey
)

var errMissingHost = errors.New("host not provided")

type executorParameters struct {
	server       server
	host         string
	artifactsDir string
	execTimeout  time.Duration
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
		Short: "Start the verifier executor",
		Long:  "Start the verifier executor",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getParameters(cmd, srv)
			if err != nil {
				return err
			}

			return startExecutor(parameters)
		},
	}
}

func getParameters(cmd *cobra.Command, srv server) (*executorParameters, error) {
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

	artifactsDir, err := getUserSetVar(cmd, artifactsDirFlagName, artifactsDirEnvKey, true)
	if err != nil {
		return nil, err
	}

	if artifactsDir == "" {
		artifactsDir = artifactsDirDefault
	}

	execTimeoutStr, err := getUserSetVar(cmd, execTimeoutFlagName, execTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	var execTimeout time.Duration

	if execTimeoutStr != "" {
		execTimeout, err = time.ParseDuration(execTimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exec timeout %s: %w", execTimeoutStr, err)
		}
	}

	return &executorParameters{
		server:       srv,
		host:         host,
		artifactsDir: artifactsDir,
		execTimeout:  execTimeout,
	}, nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostFlagName, hostFlagShorthand, "", hostFlagUsage)
	startCmd.Flags().StringP(artifactsDirFlagName, "", "", artifactsDirFlagUsage)
	startCmd.Flags().StringP(execTimeoutFlagName, "", "", execTimeoutFlagUsage)
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

func startExecutor(parameters *executorParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	m, err := manifest.Load(filepath.Join(parameters.artifactsDir, manifest.FileName))
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	active := m.ActiveVersion()

	// refuse to serve with a tampered or missing binary
	if err := manifest.ValidateBinary(parameters.artifactsDir, active); err != nil {
		return fmt.Errorf("binary validation failed for %s %s: %w", m.Prover, active.Version, err)
	}

	logger.Infof("serving %s version %s from %s", m.Prover, active.Version, parameters.artifactsDir)

	eng := engine.New(parameters.artifactsDir, m, engine.WithTimeout(parameters.execTimeout))

	router := mux.NewRouter()

	for _, handler := range verifierrest.New(eng).GetRESTHandlers() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	logger.Infof("Starting prova verifier rest on host [%s]", parameters.host)

	if err := parameters.server.ListenAndServe(parameters.host, router); err != nil {
		return fmt.Errorf("failed to start prova verifier rest on host [%s], cause: %w", parameters.host, err)
	}

	return nil
}
