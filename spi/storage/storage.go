/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package storage defines the durable-store capability consumed by the gateway.
// Implementations provide row-level CRUD with tag-based querying and
// unique-key detection via the Batch IsNewKey option.
package storage

import (
	"errors"
)

var (
	// ErrStoreNotFound is returned when a store is not found.
	ErrStoreNotFound = errors.New("store not found")

	// ErrDataNotFound is returned when data is not found.
	ErrDataNotFound = errors.New("data not found")

	// ErrDuplicateKey is returned when a Batch Put with the IsNewKey option uses a key that
	// already exists in the database.
	ErrDuplicateKey = errors.New("duplicate key")
)

// StoreConfiguration represents the configuration of a store.
// It is used for creating indexes in underlying storage databases.
type StoreConfiguration struct {
	// TagNames is a list of Tag names to create indexes on.
	// Tag names cannot contain any ':' characters.
	TagNames []string `json:"tagNames,omitempty"`
}

// Tag represents a Name + Value pair that can be associated with a key + value pair for querying later.
// Neither Name nor Value may contain ':' characters.
type Tag struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// PutOptions represents options for a Put Operation.
type PutOptions struct {
	// IsNewKey declares that the key must not currently exist in the database. A Batch
	// operation with this option set fails with an error wrapping ErrDuplicateKey if the
	// key is already present. This is how unique constraints are enforced.
	IsNewKey bool `json:"isNewKey,omitempty"`
}

// Operation represents an operation to be performed in the Batch method.
type Operation struct {
	Key        string      `json:"key,omitempty"`
	Value      []byte      `json:"value,omitempty"`      // A nil value will result in a delete operation.
	Tags       []Tag       `json:"tags,omitempty"`       // Optional.
	PutOptions *PutOptions `json:"putOptions,omitempty"` // Optional. Only used for Put Operations.
}

// Provider represents a storage provider.
type Provider interface {
	// OpenStore opens a Store with the given name and returns it.
	// Store names are not case-sensitive. If name is blank, then an error will be returned.
	OpenStore(name string) (Store, error)

	// SetStoreConfig sets the configuration on a Store. The underlying database may use this to
	// create indexes that make Query calls faster. OpenStore must be called first; if the store
	// cannot be found then an error wrapping ErrStoreNotFound is returned.
	SetStoreConfig(name string, config StoreConfiguration) error

	// GetStoreConfig gets the current Store configuration.
	// If the store cannot be found then an error wrapping ErrStoreNotFound is returned.
	GetStoreConfig(name string) (StoreConfiguration, error)

	// Close closes all open Stores in this Provider.
	// For persistent Store implementations, this does not delete any data in the underlying databases.
	Close() error
}

// Store represents a storage database.
type Store interface {
	// Put stores the key + value pair along with the (optional) tags. If the key already exists in the
	// database, then the value and tags are overwritten silently.
	// If key is empty or value is nil, then an error will be returned.
	Put(key string, value []byte, tags ...Tag) error

	// Get fetches the value associated with the given key.
	// If key cannot be found, then an error wrapping ErrDataNotFound will be returned.
	// If key is empty, then an error will be returned.
	Get(key string) ([]byte, error)

	// Query returns all data that satisfies the expression. Expression format: TagName:TagValue.
	// If TagValue is not provided, then all data associated with the TagName will be returned,
	// regardless of their tag values. Multiple TagName:TagValue pairs may be ANDed together by
	// separating them with &&.
	Query(expression string) (Iterator, error)

	// Delete deletes the key + value pair (and all tags) associated with key.
	// If key is empty, then an error will be returned.
	Delete(key string) error

	// Batch performs multiple Put and/or Delete operations in order, atomically with respect to
	// other calls on this store. A Put with PutOptions.IsNewKey set fails the whole batch with an
	// error wrapping ErrDuplicateKey when the key already exists.
	// If any of the given keys are empty, or the operations slice is empty or nil, then an error
	// will be returned.
	Batch(operations []Operation) error

	// Flush forces any queued up Put and/or Delete operations to execute.
	// If the Store implementation doesn't queue up operations, then this method is a no-op.
	Flush() error

	// Close closes this store object, freeing resources.
	// Close can be called repeatedly on the same store multiple times without causing an error.
	Close() error
}

// Iterator allows for iteration over a collection of entries in a store.
type Iterator interface {
	// Next moves the pointer to the next entry in the iterator.
	// Note that it must be called before accessing the first entry.
	// It returns false if the iterator is exhausted - this is not considered an error.
	Next() (bool, error)

	// Key returns the key of the current entry.
	Key() (string, error)

	// Value returns the value of the current entry.
	Value() ([]byte, error)

	// Tags returns the tags associated with the key of the current entry.
	Tags() ([]Tag, error)

	// TotalItems returns a count of the number of entries matched by the query that generated
	// this Iterator.
	TotalItems() (int, error)

	// Close closes this iterator object, freeing resources.
	Close() error
}
