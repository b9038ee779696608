/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package verify exposes the proof verification endpoint.
package verify

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/internal/cmdutil"
	"github.com/xavi-pinsach/prova/pkg/controller/rest"
	"github.com/xavi-pinsach/prova/pkg/gateway/metrics"
	"github.com/xavi-pinsach/prova/pkg/gateway/verify"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
	"github.com/xavi-pinsach/prova/pkg/verifier/client"
)

const verifyPath = "/v1/verify"

// Operation is the verification REST controller.
type Operation struct {
	service  *verify.Service
	handlers []rest.Handler
}

// New returns a new verification operation.
func New(service *verify.Service) *Operation {
	o := &Operation{service: service}
	o.registerHandler()

	return o
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(verifyPath, http.MethodPost, o.verify),
	}
}

func (o *Operation) verify(rw http.ResponseWriter, req *http.Request) {
	var request verify.Request
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		rest.SendError(rw, http.StatusBadRequest, "invalid request body")

		return
	}

	if len(request.Proof) == 0 {
		rest.SendError(rw, http.StatusBadRequest, "proof is required")

		return
	}

	response, err := o.service.Verify(req.Context(), &request)
	if err != nil {
		sendVerifyError(rw, err)

		return
	}

	if response.Valid {
		metrics.IncVerification(metrics.OutcomeValid)
	} else {
		metrics.IncVerification(metrics.OutcomeInvalid)
	}

	rest.SendJSON(rw, http.StatusOK, response)
}

func sendVerifyError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verify.ErrUnsupportedProver),
		errors.Is(err, verify.ErrKeyRevoked),
		errors.Is(err, verify.ErrInvalidProof):
		metrics.IncVerification(metrics.OutcomeError)
		rest.SendError(rw, http.StatusBadRequest, err.Error())
	case errors.Is(err, vk.ErrNotFound):
		metrics.IncVerification(metrics.OutcomeError)
		rest.SendError(rw, http.StatusNotFound, "Verification key not found")
	case errors.Is(err, client.ErrExecutorUnavailable):
		metrics.IncVerification(metrics.OutcomeUnavailable)
		rest.SendError(rw, http.StatusBadGateway, "Verifier service unavailable")
	default:
		metrics.IncVerification(metrics.OutcomeError)
		rest.SendInternalError(rw, err)
	}
}
