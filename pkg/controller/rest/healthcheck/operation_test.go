/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package healthcheck_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xavi-pinsach/prova/pkg/controller/rest/healthcheck"
)

func TestOperation_Health(t *testing.T) {
	handlers := healthcheck.New().GetRESTHandlers()
	require.Len(t, handlers, 1)
	require.Equal(t, "/health", handlers[0].Path())
	require.Equal(t, http.MethodGet, handlers[0].Method())

	rr := httptest.NewRecorder()
	handlers[0].Handle()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var response healthcheck.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.Equal(t, "ok", response.Status)
}
