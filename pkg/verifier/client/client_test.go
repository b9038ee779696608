/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xavi-pinsach/prova/pkg/verifier/api"
	"github.com/xavi-pinsach/prova/pkg/verifier/client"
)

func TestClient_Health(t *testing.T) {
	t.Run("healthy executor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, api.HealthPath, r.URL.Path)

			writeJSON(t, w, api.HealthResponse{Healthy: true, Version: "zisk-0.7.0"})
		}))
		defer server.Close()

		version, err := client.New(server.URL).Health(context.Background())
		require.NoError(t, err)
		require.Equal(t, "zisk-0.7.0", version)
	})

	t.Run("unhealthy executor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, api.HealthResponse{Healthy: false})
		}))
		defer server.Close()

		_, err := client.New(server.URL).Health(context.Background())
		require.ErrorIs(t, err, client.ErrExecutorUnavailable)
	})

	t.Run("unreachable executor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := client.New(server.URL).Health(context.Background())
		require.ErrorIs(t, err, client.ErrExecutorUnavailable)
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := client.New(server.URL).Health(context.Background())
		require.ErrorIs(t, err, client.ErrExecutorUnavailable)
	})
}

func TestClient_WaitHealthy(t *testing.T) {
	t.Run("recovers within the retry budget", func(t *testing.T) {
		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}

			writeJSON(t, w, api.HealthResponse{Healthy: true, Version: "zisk-0.7.0"})
		}))
		defer server.Close()

		version, err := client.New(server.URL).WaitHealthy(context.Background())
		require.NoError(t, err)
		require.Equal(t, "zisk-0.7.0", version)
		require.Equal(t, 2, attempts)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		attempts := 0

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := client.New(server.URL).WaitHealthy(context.Background())
		require.ErrorIs(t, err, client.ErrExecutorUnavailable)
		require.Equal(t, 3, attempts)
	})
}

func TestClient_Verify(t *testing.T) {
	t.Run("valid verdict", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, api.VerifyPath, r.URL.Path)

			var request api.VerifyRequest

			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			require.Equal(t, []byte(`{"pi_a":[1]}`), request.Proof)
			require.Equal(t, []string{"3", "7"}, request.PublicInputs)
			require.Equal(t, "zisk", request.ProofSystem)

			writeJSON(t, w, api.VerifyResponse{Valid: true, ProverVersion: "zisk-0.7.0"})
		}))
		defer server.Close()

		verdict, err := client.New(server.URL).Verify(context.Background(), &api.VerifyRequest{
			Proof:        []byte(`{"pi_a":[1]}`),
			PublicInputs: []string{"3", "7"},
			ProofSystem:  "zisk",
		})
		require.NoError(t, err)
		require.True(t, verdict.Valid)
		require.Equal(t, "zisk-0.7.0", verdict.ProverVersion)
	})

	t.Run("invalid verdict is not a transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, api.VerifyResponse{Valid: false, ProverVersion: "zisk-0.7.0", Error: "pairing check failed"})
		}))
		defer server.Close()

		verdict, err := client.New(server.URL).Verify(context.Background(), &api.VerifyRequest{
			Proof:       []byte(`{}`),
			ProofSystem: "zisk",
		})
		require.NoError(t, err)
		require.False(t, verdict.Valid)
		require.Equal(t, "pairing check failed", verdict.Error)
	})

	t.Run("unreachable executor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := client.New(server.URL).Verify(context.Background(), &api.VerifyRequest{ProofSystem: "zisk"})
		require.ErrorIs(t, err, client.ErrExecutorUnavailable)
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, body interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(body))
}
