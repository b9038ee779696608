/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package healthcheck exposes the gateway liveness endpoint.
package healthcheck

import (
	"net/http"

	"github.com/xavi-pinsach/prova/pkg/internal/cmdutil"
	"github.com/xavi-pinsach/prova/pkg/controller/rest"
)

const healthCheckPath = "/health"

// Response is the health check body.
type Response struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Operation is the health check REST controller.
type Operation struct {
	handlers []rest.Handler
}

// New returns a new health check operation.
func New() *Operation {
	o := &Operation{}
	o.registerHandler()

	return o
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(healthCheckPath, http.MethodGet, o.health),
	}
}

func (o *Operation) health(rw http.ResponseWriter, _ *http.Request) {
	rest.SendJSON(rw, http.StatusOK, Response{Status: "ok", Service: "prova-gateway"})
}
