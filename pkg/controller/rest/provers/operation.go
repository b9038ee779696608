/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package provers exposes the public prover catalog endpoints.
package provers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/internal/cmdutil"
	"github.com/xavi-pinsach/prova/pkg/controller/rest"
	"github.com/xavi-pinsach/prova/pkg/gateway/prover"
)

const (
	operationID       = "/v1/provers"
	listProversPath   = operationID
	listVersionsPath  = operationID + "/{prover}/versions"
	versionDetailPath = operationID + "/{prover}/{version}"
)

// ListResponse wraps the prover list.
type ListResponse struct {
	Provers []prover.Info `json:"provers"`
}

// VersionsResponse wraps a prover's version list.
type VersionsResponse struct {
	Prover   string               `json:"prover"`
	Versions []prover.VersionInfo `json:"versions"`
}

// Operation is the prover catalog REST controller.
type Operation struct {
	catalog  *prover.Catalog
	handlers []rest.Handler
}

// New returns a new prover catalog operation.
func New(catalog *prover.Catalog) *Operation {
	o := &Operation{catalog: catalog}
	o.registerHandler()

	return o
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(listProversPath, http.MethodGet, o.listProvers),
		cmdutil.NewHTTPHandler(listVersionsPath, http.MethodGet, o.listVersions),
		cmdutil.NewHTTPHandler(versionDetailPath, http.MethodGet, o.versionDetail),
	}
}

func (o *Operation) listProvers(rw http.ResponseWriter, _ *http.Request) {
	rest.SendJSON(rw, http.StatusOK, ListResponse{Provers: o.catalog.Provers()})
}

func (o *Operation) listVersions(rw http.ResponseWriter, req *http.Request) {
	proverName := mux.Vars(req)["prover"]

	versions, err := o.catalog.Versions(proverName)
	if err != nil {
		rest.SendInternalError(rw, err)

		return
	}

	if versions == nil {
		versions = []prover.VersionInfo{}
	}

	rest.SendJSON(rw, http.StatusOK, VersionsResponse{Prover: proverName, Versions: versions})
}

func (o *Operation) versionDetail(rw http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	detail, err := o.catalog.Version(vars["prover"], vars["version"])
	if err != nil {
		if errors.Is(err, prover.ErrNotFound) {
			rest.SendError(rw, http.StatusNotFound, "Verification key not found")

			return
		}

		rest.SendInternalError(rw, err)

		return
	}

	rest.SendJSON(rw, http.StatusOK, detail)
}
