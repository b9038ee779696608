/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package identity manages principals and their API-key credentials.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/spi/storage"
)

var logger = log.New("prova/identity")

const (
	identityStoreName   = "identity"
	credentialStoreName = "credential"

	externalIDIndexPrefix = "ext_"
	lastUsedKeyPrefix     = "used_"
	identityIDTagName     = "identityID"
	credentialTagName     = "credential"

	apiKeyPrefix     = "prova_"
	apiKeyRandomSize = 24
)

// ErrCredentialNotFound is returned when no live credential matches a key hash.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrIdentityNotFound is returned when an identity cannot be resolved.
var ErrIdentityNotFound = errors.New("identity not found")

// Service provides identity and credential management over the storage capability.
type Service struct {
	identities  storage.Store
	credentials storage.Store
}

// NewService opens the identity and credential stores on the given provider.
func NewService(provider storage.Provider) (*Service, error) {
	identities, err := provider.OpenStore(identityStoreName)
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}

	credentials, err := provider.OpenStore(credentialStoreName)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	if err := provider.SetStoreConfig(credentialStoreName,
		storage.StoreConfiguration{TagNames: []string{identityIDTagName, credentialTagName}}); err != nil {
		return nil, fmt.Errorf("configure credential store: %w", err)
	}

	return &Service{identities: identities, credentials: credentials}, nil
}

// HashKey computes the one-way content hash under which a raw API key is stored.
func HashKey(rawKey string) string {
	digest := sha256.Sum256([]byte(rawKey))

	return hex.EncodeToString(digest[:])
}

// CreateIdentity stores a new identity with the given role. Used for out-of-band
// provisioning of admins and prover managers.
func (s *Service) CreateIdentity(externalID, email string, role Role, managedProver string) (*Identity, error) {
	ident := &Identity{
		ID:            uuid.New(),
		ExternalID:    externalID,
		Email:         email,
		Role:          role,
		ManagedProver: managedProver,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.saveIdentity(ident); err != nil {
		return nil, err
	}

	return ident, nil
}

// GetOrCreateIdentity resolves an identity by external ID, creating a plain user
// when none exists yet.
func (s *Service) GetOrCreateIdentity(externalID, email string) (*Identity, error) {
	idBytes, err := s.identities.Get(externalIDIndexPrefix + externalID)
	if err == nil {
		return s.GetIdentity(string(idBytes))
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("look up identity by external id: %w", err)
	}

	ident, err := s.CreateIdentity(externalID, email, RoleUser, "")
	if err == nil {
		return ident, nil
	}

	// lost a concurrent create for the same external id; the winner's record is authoritative
	if errors.Is(err, storage.ErrDuplicateKey) {
		idBytes, getErr := s.identities.Get(externalIDIndexPrefix + externalID)
		if getErr != nil {
			return nil, fmt.Errorf("look up identity by external id: %w", getErr)
		}

		return s.GetIdentity(string(idBytes))
	}

	return nil, err
}

// GetIdentity fetches an identity by its ID.
func (s *Service) GetIdentity(id string) (*Identity, error) {
	value, err := s.identities.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrIdentityNotFound
		}

		return nil, fmt.Errorf("get identity: %w", err)
	}

	ident := &Identity{}
	if err := json.Unmarshal(value, ident); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}

	return ident, nil
}

// HasLiveCredential reports whether the identity holds at least one non-revoked credential.
func (s *Service) HasLiveCredential(identityID uuid.UUID) (bool, error) {
	iterator, err := s.credentials.Query(identityIDTagName + ":" + identityID.String())
	if err != nil {
		return false, fmt.Errorf("query credentials: %w", err)
	}

	defer closeIterator(iterator)

	for {
		more, err := iterator.Next()
		if err != nil {
			return false, err
		}

		if !more {
			return false, nil
		}

		value, err := iterator.Value()
		if err != nil {
			return false, err
		}

		cred := &Credential{}
		if err := json.Unmarshal(value, cred); err != nil {
			return false, fmt.Errorf("unmarshal credential: %w", err)
		}

		if !cred.Revoked {
			return true, nil
		}
	}
}

// IssueCredential mints a fresh API key for the identity and stores its hash.
// The raw key is returned exactly once and never persisted.
func (s *Service) IssueCredential(identityID uuid.UUID, name string) (string, *Credential, error) {
	rawKey, err := generateAPIKey()
	if err != nil {
		return "", nil, err
	}

	cred := &Credential{
		ID:         uuid.New(),
		IdentityID: identityID,
		KeyHash:    HashKey(rawKey),
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}

	value, err := json.Marshal(cred)
	if err != nil {
		return "", nil, fmt.Errorf("marshal credential: %w", err)
	}

	err = s.credentials.Batch([]storage.Operation{{
		Key:   cred.KeyHash,
		Value: value,
		Tags: []storage.Tag{
			{Name: credentialTagName},
			{Name: identityIDTagName, Value: identityID.String()},
		},
		PutOptions: &storage.PutOptions{IsNewKey: true},
	}})
	if err != nil {
		return "", nil, fmt.Errorf("store credential: %w", err)
	}

	return rawKey, cred, nil
}

// LookupByKeyHash resolves a non-revoked credential and its owning identity.
// Returns ErrCredentialNotFound for unknown or revoked hashes.
func (s *Service) LookupByKeyHash(keyHash string) (*Identity, *Credential, error) {
	value, err := s.credentials.Get(keyHash)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, nil, ErrCredentialNotFound
		}

		return nil, nil, fmt.Errorf("get credential: %w", err)
	}

	cred := &Credential{}
	if err := json.Unmarshal(value, cred); err != nil {
		return nil, nil, fmt.Errorf("unmarshal credential: %w", err)
	}

	if cred.Revoked {
		return nil, nil, ErrCredentialNotFound
	}

	lastUsed, err := s.credentials.Get(lastUsedKeyPrefix + keyHash)
	if err == nil {
		if touched, parseErr := time.Parse(time.RFC3339Nano, string(lastUsed)); parseErr == nil {
			cred.LastUsedAt = &touched
		}
	} else if !errors.Is(err, storage.ErrDataNotFound) {
		return nil, nil, fmt.Errorf("get credential last use: %w", err)
	}

	ident, err := s.GetIdentity(cred.IdentityID.String())
	if err != nil {
		return nil, nil, err
	}

	return ident, cred, nil
}

// TouchCredential records the time the credential was last used. Best effort
// bookkeeping: callers may ignore the error. The timestamp lives under its own
// key so a touch can never write over the credential record itself (in
// particular its revoked flag).
func (s *Service) TouchCredential(keyHash string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.credentials.Put(lastUsedKeyPrefix+keyHash, []byte(now)); err != nil {
		return fmt.Errorf("record credential use: %w", err)
	}

	return nil
}

// RevokeCredential marks the credential revoked. The transition is terminal;
// revoking an already revoked credential is a no-op.
func (s *Service) RevokeCredential(keyHash string) error {
	value, err := s.credentials.Get(keyHash)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return ErrCredentialNotFound
		}

		return fmt.Errorf("get credential: %w", err)
	}

	cred := &Credential{}
	if err := json.Unmarshal(value, cred); err != nil {
		return fmt.Errorf("unmarshal credential: %w", err)
	}

	cred.Revoked = true

	return s.putCredential(cred)
}

func (s *Service) saveIdentity(ident *Identity) error {
	value, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	operations := []storage.Operation{{
		Key:   ident.ID.String(),
		Value: value,
	}}

	if ident.ExternalID != "" {
		operations = append(operations, storage.Operation{
			Key:        externalIDIndexPrefix + ident.ExternalID,
			Value:      []byte(ident.ID.String()),
			PutOptions: &storage.PutOptions{IsNewKey: true},
		})
	}

	if err := s.identities.Batch(operations); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}

	return nil
}

func (s *Service) putCredential(cred *Credential) error {
	value, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	return s.credentials.Put(cred.KeyHash, value,
		storage.Tag{Name: credentialTagName},
		storage.Tag{Name: identityIDTagName, Value: cred.IdentityID.String()})
}

func generateAPIKey() (string, error) {
	random := make([]byte, apiKeyRandomSize)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}

	return apiKeyPrefix + hex.EncodeToString(random), nil
}

func closeIterator(iterator storage.Iterator) {
	if err := iterator.Close(); err != nil {
		logger.Errorf("failed to close iterator: %s", err)
	}
}
