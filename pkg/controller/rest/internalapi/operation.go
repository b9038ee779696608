/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package internalapi exposes the machine-to-machine endpoints: API key
// provisioning for the account frontend and anchor ingestion for chain
// clients. Both are gated by a shared internal secret rather than API keys.
package internalapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/internal/cmdutil"
	"github.com/xavi-pinsach/prova/pkg/controller/rest"
	"github.com/xavi-pinsach/prova/pkg/gateway/anchor"
	"github.com/xavi-pinsach/prova/pkg/gateway/identity"
)

const (
	operationID   = "/internal"
	provisionPath = operationID + "/api-keys/provision"
	anchorPath    = operationID + "/anchor"

	// InternalSecretHeader authenticates machine clients.
	InternalSecretHeader = "X-Internal-Secret" //nolint:gosec
)

// ProvisionRequest asks for an API key for an externally managed account.
type ProvisionRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// ProvisionResponse returns the raw API key. This is the only time the key
// is visible; only its hash is stored.
type ProvisionResponse struct {
	APIKey  string `json:"api_key"`
	Created bool   `json:"created"`
}

// AnchorRequest is one anchoring event. BlockTimestamp is RFC3339.
type AnchorRequest struct {
	ProofHash      string `json:"proof_hash"`
	VKHash         string `json:"vk_hash"`
	Valid          bool   `json:"valid"`
	Prover         string `json:"prover"`
	ProofSystem    string `json:"proof_system"`
	Chain          string `json:"chain"`
	BlockNumber    *int64 `json:"block_number,omitempty"`
	BlockHash      string `json:"block_hash,omitempty"`
	BlockTimestamp string `json:"block_timestamp,omitempty"`
	TxHash         string `json:"tx_hash,omitempty"`
	ExplorerURL    string `json:"explorer_url,omitempty"`
}

// ChainInfo groups the chain coordinates in an anchor response.
type ChainInfo struct {
	Name           string     `json:"name"`
	BlockNumber    *int64     `json:"block_number,omitempty"`
	BlockHash      string     `json:"block_hash,omitempty"`
	BlockTimestamp *time.Time `json:"block_timestamp,omitempty"`
	TxHash         string     `json:"tx_hash,omitempty"`
	ExplorerURL    string     `json:"explorer_url,omitempty"`
}

// AnchorResponse is the stored anchor view.
type AnchorResponse struct {
	ID          string    `json:"id"`
	ProofHash   string    `json:"proof_hash"`
	VKHash      string    `json:"vk_hash"`
	Valid       bool      `json:"valid"`
	Prover      string    `json:"prover"`
	ProofSystem string    `json:"proof_system"`
	Chain       ChainInfo `json:"chain"`
	CreatedAt   string    `json:"created_at"`
}

// Operation is the internal API REST controller.
type Operation struct {
	identities     *identity.Service
	anchors        *anchor.Service
	internalSecret string
	handlers       []rest.Handler
}

// New returns a new internal API operation.
func New(identities *identity.Service, anchors *anchor.Service, internalSecret string) *Operation {
	o := &Operation{identities: identities, anchors: anchors, internalSecret: internalSecret}
	o.registerHandler()

	return o
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(provisionPath, http.MethodPost, o.provision),
		cmdutil.NewHTTPHandler(anchorPath, http.MethodPost, o.createAnchor),
	}
}

func (o *Operation) authorized(req *http.Request) bool {
	if o.internalSecret == "" {
		return false
	}

	provided := req.Header.Get(InternalSecretHeader)

	return subtle.ConstantTimeCompare([]byte(provided), []byte(o.internalSecret)) == 1
}

func (o *Operation) provision(rw http.ResponseWriter, req *http.Request) {
	if !o.authorized(req) {
		rest.SendError(rw, http.StatusUnauthorized, "Authentication required")

		return
	}

	var request ProvisionRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		rest.SendError(rw, http.StatusBadRequest, "invalid request body")

		return
	}

	if request.UserID == "" || request.Email == "" {
		rest.SendError(rw, http.StatusBadRequest, "user_id and email are required")

		return
	}

	ident, err := o.identities.GetOrCreateIdentity(request.UserID, request.Email)
	if err != nil {
		rest.SendInternalError(rw, err)

		return
	}

	live, err := o.identities.HasLiveCredential(ident.ID)
	if err != nil {
		rest.SendInternalError(rw, err)

		return
	}

	if live {
		rest.SendError(rw, http.StatusBadRequest, "User already has an API key. Revoke existing key first.")

		return
	}

	rawKey, _, err := o.identities.IssueCredential(ident.ID, "auto-provisioned")
	if err != nil {
		rest.SendInternalError(rw, err)

		return
	}

	rest.SendJSON(rw, http.StatusOK, ProvisionResponse{APIKey: rawKey, Created: true})
}

func (o *Operation) createAnchor(rw http.ResponseWriter, req *http.Request) {
	if !o.authorized(req) {
		rest.SendError(rw, http.StatusUnauthorized, "Authentication required")

		return
	}

	var request AnchorRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		rest.SendError(rw, http.StatusBadRequest, "invalid request body")

		return
	}

	if request.ProofHash == "" || request.Chain == "" {
		rest.SendError(rw, http.StatusBadRequest, "proof_hash and chain are required")

		return
	}

	// a malformed timestamp is dropped rather than rejected
	var blockTimestamp *time.Time

	if request.BlockTimestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, request.BlockTimestamp); err == nil {
			utc := parsed.UTC()
			blockTimestamp = &utc
		}
	}

	record, err := o.anchors.Create(anchor.CreateRequest{
		ProofHash:      request.ProofHash,
		VKHash:         request.VKHash,
		Valid:          request.Valid,
		Prover:         request.Prover,
		ProofSystem:    request.ProofSystem,
		Chain:          request.Chain,
		BlockNumber:    request.BlockNumber,
		BlockHash:      request.BlockHash,
		BlockTimestamp: blockTimestamp,
		TxHash:         request.TxHash,
		ExplorerURL:    request.ExplorerURL,
	})
	if err != nil {
		if errors.Is(err, anchor.ErrNotFound) {
			rest.SendError(rw, http.StatusNotFound, "Anchor not found")

			return
		}

		rest.SendInternalError(rw, err)

		return
	}

	rest.SendJSON(rw, http.StatusOK, AnchorResponse{
		ID:          record.ID.String(),
		ProofHash:   record.ProofHash,
		VKHash:      record.VKHash,
		Valid:       record.Valid,
		Prover:      record.Prover,
		ProofSystem: record.ProofSystem,
		Chain: ChainInfo{
			Name:           record.Chain,
			BlockNumber:    record.BlockNumber,
			BlockHash:      record.BlockHash,
			BlockTimestamp: record.BlockTimestamp,
			TxHash:         record.TxHash,
			ExplorerURL:    record.ExplorerURL,
		},
		CreatedAt: record.CreatedAt.Format(time.RFC3339),
	})
}
