/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package rest exposes the executor's protocol endpoints over HTTP.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/internal/cmdutil"
	"github.com/xavi-pinsach/prova/pkg/controller/rest"
	"github.com/xavi-pinsach/prova/pkg/verifier/api"
	"github.com/xavi-pinsach/prova/pkg/verifier/engine"
)

// Operation is the executor REST controller.
type Operation struct {
	engine   *engine.Engine
	handlers []rest.Handler
}

// New returns a new executor operation.
func New(eng *engine.Engine) *Operation {
	o := &Operation{engine: eng}
	o.registerHandler()

	return o
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(api.HealthPath, http.MethodGet, o.health),
		cmdutil.NewHTTPHandler(api.VerifyPath, http.MethodPost, o.verify),
	}
}

func (o *Operation) health(rw http.ResponseWriter, _ *http.Request) {
	rest.SendJSON(rw, http.StatusOK, api.HealthResponse{
		Healthy: true,
		Version: o.engine.ActiveVersion(),
	})
}

func (o *Operation) verify(rw http.ResponseWriter, req *http.Request) {
	var request api.VerifyRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		rest.SendError(rw, http.StatusBadRequest, "invalid request body")

		return
	}

	result, err := o.engine.Verify(req.Context(), request.Proof, request.PublicInputs)
	if err != nil {
		if errors.Is(err, engine.ErrTimeout) {
			rest.SendError(rw, http.StatusGatewayTimeout, err.Error())

			return
		}

		rest.SendInternalError(rw, err)

		return
	}

	rest.SendJSON(rw, http.StatusOK, api.VerifyResponse{
		Valid:         result.Valid,
		ProverVersion: o.engine.ActiveVersion(),
		Error:         result.Error,
	})
}
