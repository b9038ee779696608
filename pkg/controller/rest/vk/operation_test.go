/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vk_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xavi-pinsach/prova/component/storageutil/mem"
	vkrest "github.com/xavi-pinsach/prova/pkg/controller/rest/vk"
	"github.com/xavi-pinsach/prova/pkg/gateway/auth"
	"github.com/xavi-pinsach/prova/pkg/gateway/identity"
	vksvc "github.com/xavi-pinsach/prova/pkg/gateway/vk"
)

func TestOperation_List(t *testing.T) {
	registry, router := newRouter(t)

	for i := 0; i < 3; i++ {
		createKey(t, registry, "zisk", fmt.Sprintf("1.0.%d", i), "")
	}

	t.Run("all keys", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/v1/vks", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var response vkrest.ListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Equal(t, 3, response.Total)
		require.Len(t, response.VKs, 3)
	})

	t.Run("pagination", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/v1/vks?limit=2&offset=2", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var response vkrest.ListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.Equal(t, 3, response.Total)
		require.Len(t, response.VKs, 1)
	})

	t.Run("bad limit", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/v1/vks?limit=abc", nil, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOperation_Get(t *testing.T) {
	registry, router := newRouter(t)

	key := createKey(t, registry, "zisk", "1.0.0", "fib")

	t.Run("by id", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/v1/vks/"+key.ID.String(), nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var detail vkrest.DetailResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
		require.Equal(t, key.Hash, detail.Hash)
	})

	t.Run("by hash", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/v1/vks/"+key.Hash, nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("by alias with prover scope", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/v1/vks/fib?prover=zisk", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/v1/vks/"+uuid.NewString(), nil, nil)
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestOperation_Create(t *testing.T) {
	body := func(prover string) []byte {
		return []byte(fmt.Sprintf(`{"prover":%q,"version":"1.0.0","proof_system":"stark","vk_data":{"n":1}}`, prover))
	}

	t.Run("admin can register for any prover", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPost, "/v1/vks", body("zisk"), admin())
		require.Equal(t, http.StatusCreated, rr.Code)

		var detail vkrest.DetailResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
		require.Equal(t, "active", detail.Status)
	})

	t.Run("prover manager within scope", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPost, "/v1/vks", body("zisk"), manager("zisk"))
		require.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("prover manager outside scope gets 403", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPost, "/v1/vks", body("stark"), manager("zisk"))
		require.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("plain user gets 403", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPost, "/v1/vks", body("zisk"), user())
		require.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("no identity gets 401", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPost, "/v1/vks", body("zisk"), nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("duplicate hash gets 409", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPost, "/v1/vks", body("zisk"), admin())
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = doRequest(t, router, http.MethodPost, "/v1/vks", body("zisk"), admin())
		require.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("missing fields get 400", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPost, "/v1/vks",
			[]byte(`{"prover":"zisk"}`), admin())
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOperation_Update(t *testing.T) {
	t.Run("deprecate with reason", func(t *testing.T) {
		registry, router := newRouter(t)
		key := createKey(t, registry, "zisk", "1.0.0", "")

		rr := doRequest(t, router, http.MethodPatch, "/v1/vks/"+key.ID.String(),
			[]byte(`{"status":"deprecated","deprecation_reason":"superseded"}`), admin())
		require.Equal(t, http.StatusOK, rr.Code)

		var detail vkrest.DetailResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
		require.Equal(t, "deprecated", detail.Status)
		require.Equal(t, "superseded", detail.DeprecationReason)
	})

	t.Run("manager outside scope gets 403", func(t *testing.T) {
		registry, router := newRouter(t)
		key := createKey(t, registry, "zisk", "1.0.0", "")

		rr := doRequest(t, router, http.MethodPatch, "/v1/vks/"+key.ID.String(),
			[]byte(`{"status":"revoked"}`), manager("stark"))
		require.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid status value gets 400", func(t *testing.T) {
		registry, router := newRouter(t)
		key := createKey(t, registry, "zisk", "1.0.0", "")

		rr := doRequest(t, router, http.MethodPatch, "/v1/vks/"+key.ID.String(),
			[]byte(`{"status":"paused"}`), admin())
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		_, router := newRouter(t)

		rr := doRequest(t, router, http.MethodPatch, "/v1/vks/"+uuid.NewString(),
			[]byte(`{"status":"revoked"}`), admin())
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func newRouter(t *testing.T) (*vksvc.Registry, *mux.Router) {
	t.Helper()

	registry, err := vksvc.NewRegistry(mem.NewProvider())
	require.NoError(t, err)

	router := mux.NewRouter()
	for _, handler := range vkrest.New(registry).GetRESTHandlers() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	return registry, router
}

func doRequest(t *testing.T, router *mux.Router, method, target string, body []byte,
	ident *identity.Identity) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if ident != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), ident))
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	return rr
}

func createKey(t *testing.T, registry *vksvc.Registry, prover, version, alias string) *vksvc.VerificationKey {
	t.Helper()

	key, err := registry.Create(vksvc.CreateRequest{
		Prover:      prover,
		Version:     version,
		ProofSystem: "stark",
		Alias:       alias,
		Data:        json.RawMessage(fmt.Sprintf(`{"prover":%q,"version":%q}`, prover, version)),
	}, uuid.New())
	require.NoError(t, err)

	return key
}

func admin() *identity.Identity {
	return &identity.Identity{ID: uuid.New(), Role: identity.RoleAdmin}
}

func manager(prover string) *identity.Identity {
	return &identity.Identity{ID: uuid.New(), Role: identity.RoleProverManager, ManagedProver: prover}
}

func user() *identity.Identity {
	return &identity.Identity{ID: uuid.New(), Role: identity.RoleUser}
}
