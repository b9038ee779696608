/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vk exposes the verification key registry endpoints. Reads are
// public; registration and updates require an identity allowed to manage
// the key's prover.
package vk

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/internal/cmdutil"
	"github.com/xavi-pinsach/prova/pkg/controller/rest"
	"github.com/xavi-pinsach/prova/pkg/gateway/auth"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
)

const (
	operationID = "/v1/vks"
	vksPath     = operationID
	vkByIDPath  = operationID + "/{id}"
)

// ListItem is one key in a list response. Key material is omitted.
type ListItem struct {
	ID          string `json:"id"`
	Prover      string `json:"prover"`
	Version     string `json:"version"`
	ProofSystem string `json:"proof_system"`
	ProofType   string `json:"proof_type,omitempty"`
	Hash        string `json:"hash"`
	Alias       string `json:"alias,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// ListResponse is the list endpoint body.
type ListResponse struct {
	VKs   []ListItem `json:"vks"`
	Total int        `json:"total"`
}

// DetailResponse is the single-key body returned by get, create and update.
type DetailResponse struct {
	ID                string `json:"id"`
	Prover            string `json:"prover"`
	Version           string `json:"version"`
	ProofSystem       string `json:"proof_system"`
	ProofType         string `json:"proof_type,omitempty"`
	Hash              string `json:"hash"`
	Alias             string `json:"alias,omitempty"`
	Status            string `json:"status"`
	DeprecationReason string `json:"deprecation_reason,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// Operation is the verification key REST controller.
type Operation struct {
	registry *vk.Registry
	handlers []rest.Handler
}

// New returns a new verification key operation.
func New(registry *vk.Registry) *Operation {
	o := &Operation{registry: registry}
	o.registerHandler()

	return o
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(vksPath, http.MethodGet, o.list),
		cmdutil.NewHTTPHandler(vksPath, http.MethodPost, o.create),
		cmdutil.NewHTTPHandler(vkByIDPath, http.MethodGet, o.get),
		cmdutil.NewHTTPHandler(vkByIDPath, http.MethodPatch, o.update),
	}
}

func (o *Operation) list(rw http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()

	params := vk.ListParams{
		Prover: query.Get("prover"),
		Status: query.Get("status"),
	}

	if limit := query.Get("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil {
			rest.SendError(rw, http.StatusBadRequest, "invalid limit")

			return
		}

		params.Limit = parsed
	}

	if offset := query.Get("offset"); offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil {
			rest.SendError(rw, http.StatusBadRequest, "invalid offset")

			return
		}

		params.Offset = parsed
	}

	records, total, err := o.registry.List(params)
	if err != nil {
		rest.SendInternalError(rw, err)

		return
	}

	items := make([]ListItem, 0, len(records))
	for _, record := range records {
		items = append(items, ListItem{
			ID:          record.ID.String(),
			Prover:      record.Prover,
			Version:     record.Version,
			ProofSystem: record.ProofSystem,
			ProofType:   record.ProofType,
			Hash:        record.Hash,
			Alias:       record.Alias,
			Status:      string(record.Status),
			CreatedAt:   record.CreatedAt.Format(time.RFC3339),
		})
	}

	rest.SendJSON(rw, http.StatusOK, ListResponse{VKs: items, Total: total})
}

func (o *Operation) get(rw http.ResponseWriter, req *http.Request) {
	identifier := mux.Vars(req)["id"]
	proverScope := req.URL.Query().Get("prover")

	record, err := o.registry.Get(identifier, proverScope)
	if err != nil {
		sendRegistryError(rw, err)

		return
	}

	rest.SendJSON(rw, http.StatusOK, toDetail(record))
}

func (o *Operation) create(rw http.ResponseWriter, req *http.Request) {
	ident, ok := auth.IdentityFromContext(req.Context())
	if !ok {
		rest.SendError(rw, http.StatusUnauthorized, "Authentication required")

		return
	}

	var request vk.CreateRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		rest.SendError(rw, http.StatusBadRequest, "invalid request body")

		return
	}

	if !ident.CanManage(request.Prover) {
		rest.SendError(rw, http.StatusForbidden, "Insufficient permissions")

		return
	}

	record, err := o.registry.Create(request, ident.ID)
	if err != nil {
		sendRegistryError(rw, err)

		return
	}

	rest.SendJSON(rw, http.StatusCreated, toDetail(record))
}

func (o *Operation) update(rw http.ResponseWriter, req *http.Request) {
	ident, ok := auth.IdentityFromContext(req.Context())
	if !ok {
		rest.SendError(rw, http.StatusUnauthorized, "Authentication required")

		return
	}

	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		rest.SendError(rw, http.StatusNotFound, "Verification key not found")

		return
	}

	existing, err := o.registry.GetByID(id.String())
	if err != nil {
		sendRegistryError(rw, err)

		return
	}

	if !ident.CanManage(existing.Prover) {
		rest.SendError(rw, http.StatusForbidden, "Insufficient permissions")

		return
	}

	var request vk.UpdateRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		rest.SendError(rw, http.StatusBadRequest, "invalid request body")

		return
	}

	record, err := o.registry.Update(id, request)
	if err != nil {
		sendRegistryError(rw, err)

		return
	}

	rest.SendJSON(rw, http.StatusOK, toDetail(record))
}

func sendRegistryError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vk.ErrNotFound):
		rest.SendError(rw, http.StatusNotFound, "Verification key not found")
	case errors.Is(err, vk.ErrKeyExists):
		rest.SendError(rw, http.StatusConflict, "Verification key already exists")
	case errors.Is(err, vk.ErrInvalidRequest):
		rest.SendError(rw, http.StatusBadRequest, err.Error())
	default:
		rest.SendInternalError(rw, err)
	}
}

func toDetail(record *vk.VerificationKey) DetailResponse {
	return DetailResponse{
		ID:                record.ID.String(),
		Prover:            record.Prover,
		Version:           record.Version,
		ProofSystem:       record.ProofSystem,
		ProofType:         record.ProofType,
		Hash:              record.Hash,
		Alias:             record.Alias,
		Status:            string(record.Status),
		DeprecationReason: record.DeprecationReason,
		CreatedAt:         record.CreatedAt.Format(time.RFC3339),
	}
}
