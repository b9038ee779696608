/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anchor records on-chain anchoring of verified proofs. One anchor
// exists per (proof hash, chain) pair; re-anchoring the same pair updates
// the chain coordinates in place.
package anchor

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

var logger = log.New("prova/anchor")

const (
	storeName = "anchor"

	proofHashTagName = "proofHash"

	idIndexPrefix = "id_"
)

// ErrNotFound is returned when no anchor matches the lookup.
var ErrNotFound = errors.New("anchor not found")

// Anchor is one recorded proof anchoring on one chain.
type Anchor struct {
	ID             uuid.UUID  `json:"id"`
	ProofHash      string     `json:"proof_hash"`
	VKHash         string     `json:"vk_hash"`
	Valid          bool       `json:"valid"`
	Prover         string     `json:"prover"`
	ProofSystem    string     `json:"proof_system"`
	Chain          string     `json:"chain"`
	BlockNumber    *int64     `json:"block_number,omitempty"`
	BlockHash      string     `json:"block_hash,omitempty"`
	BlockTimestamp *time.Time `json:"block_timestamp,omitempty"`
	TxHash         string     `json:"tx_hash,omitempty"`
	ExplorerURL    string     `json:"explorer_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateRequest carries one anchoring event from a chain client.
type CreateRequest struct {
	ProofHash      string
	VKHash         string
	Valid          bool
	Prover         string
	ProofSystem    string
	Chain          string
	BlockNumber    *int64
	BlockHash      string
	BlockTimestamp *time.Time
	TxHash         string
	ExplorerURL    string
}

// Service stores and retrieves anchors.
type Service struct {
	store storage.Store
}

// NewService opens the anchor store on the given provider.
func NewService(provider storage.Provider) (*Service, error) {
	store, err := provider.OpenStore(storeName)
	if err != nil {
		return nil, fmt.Errorf("open anchor store: %w", err)
	}

	err = provider.SetStoreConfig(storeName, storage.StoreConfiguration{
		TagNames: []string{proofHashTagName},
	})
	if err != nil {
		return nil, fmt.Errorf("configure anchor store: %w", err)
	}

	return &Service{store: store}, nil
}

// Create upserts an anchor. A repeat of the same (proof hash, chain) pair
// keeps the original id and creation time and refreshes the verdict and
// chain coordinates.
func (s *Service) Create(request CreateRequest) (*Anchor, error) {
	key := recordKey(request.ProofHash, request.Chain)

	record := &Anchor{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}

	existing, err := s.getByKey(key)
	if err == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	record.ProofHash = request.ProofHash
	record.VKHash = request.VKHash
	record.Valid = request.Valid
	record.Prover = request.Prover
	record.ProofSystem = request.ProofSystem
	record.Chain = request.Chain
	record.BlockNumber = request.BlockNumber
	record.BlockHash = request.BlockHash
	record.BlockTimestamp = request.BlockTimestamp
	record.TxHash = request.TxHash
	record.ExplorerURL = request.ExplorerURL

	value, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrap(err, "marshal anchor")
	}

	err = s.store.Batch([]storage.Operation{
		{
			Key:   key,
			Value: value,
			Tags:  []storage.Tag{{Name: proofHashTagName, Value: record.ProofHash}},
		},
		{
			Key:   idIndexPrefix + record.ID.String(),
			Value: []byte(key),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "store anchor")
	}

	logger.Infof("anchored proof %s on chain %s (valid=%t)", record.ProofHash, record.Chain, record.Valid)

	return record, nil
}

// GetByID fetches one anchor by id.
func (s *Service) GetByID(id uuid.UUID) (*Anchor, error) {
	key, err := s.store.Get(idIndexPrefix + id.String())
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "look up anchor by id")
	}

	return s.getByKey(string(key))
}

// GetByProofHash returns all anchors for one proof, newest first.
func (s *Service) GetByProofHash(proofHash string) ([]*Anchor, error) {
	iterator, err := s.store.Query(proofHashTagName + ":" + proofHash)
	if err != nil {
		return nil, errors.Wrap(err, "query anchors")
	}

	defer func() {
		if err := iterator.Close(); err != nil {
			logger.Errorf("failed to close iterator: %s", err)
		}
	}()

	var records []*Anchor

	for {
		more, err := iterator.Next()
		if err != nil {
			return nil, err
		}

		if !more {
			break
		}

		value, err := iterator.Value()
		if err != nil {
			return nil, err
		}

		record := &Anchor{}
		if err := json.Unmarshal(value, record); err != nil {
			return nil, errors.Wrap(err, "unmarshal anchor")
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// GetByProofHashAndChain fetches the single anchor for one (proof, chain) pair.
func (s *Service) GetByProofHashAndChain(proofHash, chain string) (*Anchor, error) {
	return s.getByKey(recordKey(proofHash, chain))
}

func (s *Service) getByKey(key string) (*Anchor, error) {
	value, err := s.store.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "get anchor")
	}

	record := &Anchor{}
	if err := json.Unmarshal(value, record); err != nil {
		return nil, errors.Wrap(err, "unmarshal anchor")
	}

	return record, nil
}

func recordKey(proofHash, chain string) string {
	return proofHash + "|" + chain
}
