/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vk is the trust-state registry for verification keys. Keys are
// content-addressed by the canonical hash of their payload and resolvable by
// id, hash or prover-scoped alias.
package vk

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/spi/storage"
)

var logger = log.New("prova/vk")

const (
	storeName = "verificationkey"

	recordTagName = "vk"
	proverTagName = "prover"
	statusTagName = "status"

	hashIndexPrefix  = "hash_"
	aliasIndexPrefix = "alias_"

	defaultListLimit = 50
	maxListLimit     = 100
)

var (
	// ErrNotFound is returned when no key matches the identifier.
	ErrNotFound = errors.New("verification key not found")

	// ErrKeyExists is returned when a registration collides with an existing
	// content hash or (prover, alias) pair.
	ErrKeyExists = errors.New("verification key already exists")

	// ErrInvalidRequest is returned for malformed registration input.
	ErrInvalidRequest = errors.New("invalid verification key request")
)

// Registry resolves and mutates verification key trust state.
type Registry struct {
	store storage.Store
}

// NewRegistry opens the verification key store on the given provider.
func NewRegistry(provider storage.Provider) (*Registry, error) {
	store, err := provider.OpenStore(storeName)
	if err != nil {
		return nil, fmt.Errorf("open verification key store: %w", err)
	}

	err = provider.SetStoreConfig(storeName, storage.StoreConfiguration{
		TagNames: []string{recordTagName, proverTagName, statusTagName},
	})
	if err != nil {
		return nil, fmt.Errorf("configure verification key store: %w", err)
	}

	return &Registry{store: store}, nil
}

// Resolve resolves an identifier scoped to a prover. Hash-shaped identifiers
// always resolve by content hash, never by alias, even if an alias with the
// same literal text exists. Anything else is treated as a prover-scoped alias.
func (r *Registry) Resolve(prover, identifier string) (*VerificationKey, error) {
	if IsHash(identifier) {
		return r.GetByHash(identifier)
	}

	return r.GetByAlias(prover, identifier)
}

// GetByHash fetches a key by content hash, normalizing to canonical form first.
func (r *Registry) GetByHash(hash string) (*VerificationKey, error) {
	id, err := r.store.Get(hashIndexPrefix + NormalizeHash(hash))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "look up key by hash")
	}

	return r.GetByID(string(id))
}

// GetByAlias fetches a key by prover-scoped alias.
func (r *Registry) GetByAlias(prover, alias string) (*VerificationKey, error) {
	id, err := r.store.Get(aliasIndexKey(prover, alias))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "look up key by alias")
	}

	return r.GetByID(string(id))
}

// GetByID fetches a key by its opaque id.
func (r *Registry) GetByID(id string) (*VerificationKey, error) {
	value, err := r.store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "get verification key")
	}

	record := &VerificationKey{}
	if err := json.Unmarshal(value, record); err != nil {
		return nil, errors.Wrap(err, "unmarshal verification key")
	}

	return record, nil
}

// Get resolves an identifier that may be an id, a content hash or an alias,
// in that order. Alias resolution requires a prover scope; without one an
// alias-shaped identifier yields ErrNotFound.
func (r *Registry) Get(identifier, prover string) (*VerificationKey, error) {
	if _, err := uuid.Parse(identifier); err == nil {
		return r.GetByID(identifier)
	}

	if IsHash(identifier) {
		return r.GetByHash(identifier)
	}

	if prover != "" {
		return r.GetByAlias(prover, identifier)
	}

	return nil, ErrNotFound
}

// List returns keys matching the filters, newest first, along with the exact
// total count over the same filter independent of the page window.
func (r *Registry) List(params ListParams) ([]*VerificationKey, int, error) {
	records, err := r.queryRecords(params.Prover, params.Status)
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID.String() > records[j].ID.String()
		}

		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	total := len(records)

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	if offset >= len(records) {
		return nil, total, nil
	}

	records = records[offset:]
	if len(records) > limit {
		records = records[:limit]
	}

	return records, total, nil
}

// ListAll returns every key for one prover, unpaginated. Used by catalog
// views that aggregate over versions.
func (r *Registry) ListAll(prover string) ([]*VerificationKey, error) {
	return r.queryRecords(prover, "")
}

// Create registers a new key. The content hash is computed from the canonical
// serialization of the payload; a collision with an existing hash or with an
// existing (prover, alias) pair yields ErrKeyExists.
func (r *Registry) Create(request CreateRequest, registeredBy uuid.UUID) (*VerificationKey, error) {
	if err := validateCreate(request); err != nil {
		return nil, err
	}

	hash, err := ComputeHash(request.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	record := &VerificationKey{
		ID:           uuid.New(),
		Prover:       request.Prover,
		Version:      request.Version,
		ProofSystem:  request.ProofSystem,
		ProofType:    request.ProofType,
		Hash:         hash,
		Data:         request.Data,
		Alias:        request.Alias,
		Status:       StatusActive,
		RegisteredBy: registeredBy,
		CreatedAt:    time.Now().UTC(),
		Active:       true,
	}

	value, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrap(err, "marshal verification key")
	}

	operations := []storage.Operation{
		{
			Key:   record.ID.String(),
			Value: value,
			Tags:  recordTags(record),
		},
		{
			Key:        hashIndexPrefix + hash,
			Value:      []byte(record.ID.String()),
			PutOptions: &storage.PutOptions{IsNewKey: true},
		},
	}

	if record.Alias != "" {
		operations = append(operations, storage.Operation{
			Key:        aliasIndexKey(record.Prover, record.Alias),
			Value:      []byte(record.ID.String()),
			PutOptions: &storage.PutOptions{IsNewKey: true},
		})
	}

	if err := r.store.Batch(operations); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrKeyExists
		}

		return nil, errors.Wrap(err, "store verification key")
	}

	logger.Infof("registered verification key %s for prover %s (hash %s)", record.ID, record.Prover, record.Hash)

	return record, nil
}

// Update applies a partial update: unset fields keep their current values.
// The active flag is recomputed from the resulting status.
func (r *Registry) Update(id uuid.UUID, request UpdateRequest) (*VerificationKey, error) {
	record, err := r.GetByID(id.String())
	if err != nil {
		return nil, err
	}

	previousAlias := record.Alias

	if request.Status != nil {
		record.Status = *request.Status
	}

	if request.DeprecationReason != nil {
		record.DeprecationReason = *request.DeprecationReason
	}

	if request.Alias != nil {
		record.Alias = *request.Alias
	}

	record.Active = record.Status == StatusActive

	value, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrap(err, "marshal verification key")
	}

	operations := []storage.Operation{{
		Key:   record.ID.String(),
		Value: value,
		Tags:  recordTags(record),
	}}

	if record.Alias != previousAlias {
		if previousAlias != "" {
			operations = append(operations, storage.Operation{
				Key: aliasIndexKey(record.Prover, previousAlias),
			})
		}

		if record.Alias != "" {
			operations = append(operations, storage.Operation{
				Key:        aliasIndexKey(record.Prover, record.Alias),
				Value:      []byte(record.ID.String()),
				PutOptions: &storage.PutOptions{IsNewKey: true},
			})
		}
	}

	if err := r.store.Batch(operations); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrKeyExists
		}

		return nil, errors.Wrap(err, "update verification key")
	}

	return record, nil
}

func (r *Registry) queryRecords(prover, status string) ([]*VerificationKey, error) {
	expression := recordTagName

	switch {
	case prover != "" && status != "":
		expression = proverTagName + ":" + prover + "&&" + statusTagName + ":" + status
	case prover != "":
		expression = proverTagName + ":" + prover
	case status != "":
		expression = statusTagName + ":" + status
	}

	iterator, err := r.store.Query(expression)
	if err != nil {
		return nil, errors.Wrap(err, "query verification keys")
	}

	defer func() {
		if err := iterator.Close(); err != nil {
			logger.Errorf("failed to close iterator: %s", err)
		}
	}()

	var records []*VerificationKey

	for {
		more, err := iterator.Next()
		if err != nil {
			return nil, err
		}

		if !more {
			return records, nil
		}

		value, err := iterator.Value()
		if err != nil {
			return nil, err
		}

		record := &VerificationKey{}
		if err := json.Unmarshal(value, record); err != nil {
			return nil, errors.Wrap(err, "unmarshal verification key")
		}

		records = append(records, record)
	}
}

func validateCreate(request CreateRequest) error {
	switch {
	case request.Prover == "":
		return fmt.Errorf("%w: prover is required", ErrInvalidRequest)
	case request.Version == "":
		return fmt.Errorf("%w: version is required", ErrInvalidRequest)
	case request.ProofSystem == "":
		return fmt.Errorf("%w: proof_system is required", ErrInvalidRequest)
	case len(request.Data) == 0:
		return fmt.Errorf("%w: vk_data is required", ErrInvalidRequest)
	}

	return nil
}

func recordTags(record *VerificationKey) []storage.Tag {
	return []storage.Tag{
		{Name: recordTagName},
		{Name: proverTagName, Value: record.Prover},
		{Name: statusTagName, Value: string(record.Status)},
	}
}

func aliasIndexKey(prover, alias string) string {
	return aliasIndexPrefix + prover + "|" + alias
}
