/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package provers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xavi-pinsach/prova/component/storageutil/mem"
	proversrest "github.com/xavi-pinsach/prova/pkg/controller/rest/provers"
	"github.com/xavi-pinsach/prova/pkg/gateway/prover"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
)

func TestOperation(t *testing.T) {
	registry, err := vk.NewRegistry(mem.NewProvider())
	require.NoError(t, err)

	_, err = registry.Create(vk.CreateRequest{
		Prover: "zisk", Version: "0.7.0", ProofSystem: "stark",
		Data: json.RawMessage(`{"n":1}`),
	}, uuid.New())
	require.NoError(t, err)

	router := mux.NewRouter()
	for _, handler := range proversrest.New(prover.NewCatalog(registry)).GetRESTHandlers() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	t.Run("list provers", func(t *testing.T) {
		rr := get(t, router, "/v1/provers")
		require.Equal(t, http.StatusOK, rr.Code)

		var response proversrest.ListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Len(t, response.Provers, 1)
		require.Equal(t, "zisk", response.Provers[0].Name)
	})

	t.Run("list versions", func(t *testing.T) {
		rr := get(t, router, "/v1/provers/zisk/versions")
		require.Equal(t, http.StatusOK, rr.Code)

		var response proversrest.VersionsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Equal(t, "zisk", response.Prover)
		require.Len(t, response.Versions, 1)
		require.Equal(t, "0.7.0", response.Versions[0].Version)
	})

	t.Run("versions of unknown prover is an empty list", func(t *testing.T) {
		rr := get(t, router, "/v1/provers/other/versions")
		require.Equal(t, http.StatusOK, rr.Code)

		var response proversrest.VersionsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Empty(t, response.Versions)
	})

	t.Run("version detail", func(t *testing.T) {
		rr := get(t, router, "/v1/provers/zisk/0.7.0")
		require.Equal(t, http.StatusOK, rr.Code)

		var detail prover.VersionDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
		require.Equal(t, "zisk", detail.Prover)
		require.Len(t, detail.ProofSystems, 1)
		require.Equal(t, "stark", detail.ProofSystems[0].Name)
	})

	t.Run("unknown version gets 404", func(t *testing.T) {
		rr := get(t, router, "/v1/provers/zisk/9.9.9")
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func get(t *testing.T, router *mux.Router, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	return rr
}
