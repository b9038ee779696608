/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package verify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xavi-pinsach/prova/component/storageutil/mem"
	verifyrest "github.com/xavi-pinsach/prova/pkg/controller/rest/verify"
	verifysvc "github.com/xavi-pinsach/prova/pkg/gateway/verify"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
	"github.com/xavi-pinsach/prova/pkg/verifier/api"
	"github.com/xavi-pinsach/prova/pkg/verifier/client"
)

type fakeExecutor struct {
	response *api.VerifyResponse
	err      error
}

func (f *fakeExecutor) Verify(context.Context, *api.VerifyRequest) (*api.VerifyResponse, error) {
	return f.response, f.err
}

func TestOperation_Verify(t *testing.T) {
	t.Run("valid proof", func(t *testing.T) {
		router, _ := newRouter(t, &fakeExecutor{
			response: &api.VerifyResponse{Valid: true, ProverVersion: "zisk-0.7.0"},
		})

		rr := doRequest(t, router, []byte(`{"proof":{"pi_a":[1]},"public_inputs":["3"]}`))
		require.Equal(t, http.StatusOK, rr.Code)

		var response verifysvc.Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.True(t, response.Valid)
		require.Equal(t, "zisk", response.Prover)
		require.True(t, vk.IsHash(response.ProofHash))
	})

	t.Run("invalid proof verdict is 200", func(t *testing.T) {
		router, _ := newRouter(t, &fakeExecutor{
			response: &api.VerifyResponse{Valid: false, Error: "pairing check failed"},
		})

		rr := doRequest(t, router, []byte(`{"proof":{}}`))
		require.Equal(t, http.StatusOK, rr.Code)

		var response verifysvc.Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.False(t, response.Valid)
		require.Equal(t, "pairing check failed", response.Error)
	})

	t.Run("missing proof gets 400", func(t *testing.T) {
		router, _ := newRouter(t, &fakeExecutor{})

		rr := doRequest(t, router, []byte(`{"public_inputs":["3"]}`))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unsupported prover gets 400", func(t *testing.T) {
		router, _ := newRouter(t, &fakeExecutor{})

		rr := doRequest(t, router, []byte(`{"proof":{},"prover":"other"}`))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown vk gets 404", func(t *testing.T) {
		router, _ := newRouter(t, &fakeExecutor{})

		rr := doRequest(t, router, []byte(`{"proof":{},"vk_id":"missing-alias"}`))
		require.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("revoked vk gets 400 with reason", func(t *testing.T) {
		router, registry := newRouter(t, &fakeExecutor{
			response: &api.VerifyResponse{Valid: true},
		})

		key, err := registry.Create(vk.CreateRequest{
			Prover: "zisk", Version: "1.0.0", ProofSystem: "stark", Alias: "fib",
			Data: json.RawMessage(`{"n":1}`),
		}, uuid.New())
		require.NoError(t, err)

		status := vk.StatusRevoked
		reason := "compromised"
		_, err = registry.Update(key.ID, vk.UpdateRequest{Status: &status, DeprecationReason: &reason})
		require.NoError(t, err)

		rr := doRequest(t, router, []byte(`{"proof":{},"vk_id":"fib"}`))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "compromised")
	})

	t.Run("executor outage gets 502", func(t *testing.T) {
		router, _ := newRouter(t, &fakeExecutor{err: client.ErrExecutorUnavailable})

		rr := doRequest(t, router, []byte(`{"proof":{}}`))
		require.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func newRouter(t *testing.T, executor verifysvc.Executor) (*mux.Router, *vk.Registry) {
	t.Helper()

	registry, err := vk.NewRegistry(mem.NewProvider())
	require.NoError(t, err)

	service := verifysvc.NewService(registry, executor)

	router := mux.NewRouter()
	for _, handler := range verifyrest.New(service).GetRESTHandlers() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	return router, registry
}

func doRequest(t *testing.T, router *mux.Router, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	return rr
}
