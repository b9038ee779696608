/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package prover serves the public prover catalog: which provers the
// gateway routes, and which verifier versions exist for each, derived from
// the registered verification keys.
package prover

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
)

// ErrNotFound is returned when a prover version has no registered keys.
var ErrNotFound = errors.New("prover version not found")

// Info describes one routable prover.
type Info struct {
	Name         string   `json:"name"`
	ProofSystems []string `json:"proof_systems"`
}

// VersionInfo summarizes one verifier version of a prover.
type VersionInfo struct {
	Version      string   `json:"version"`
	Active       bool     `json:"active"`
	ProofSystems []string `json:"proof_systems"`
}

// ProofSystemInfo details one proof system within a version.
type ProofSystemInfo struct {
	Name   string `json:"name"`
	VKHash string `json:"vk_hash"`
	Active bool   `json:"active"`
}

// VersionDetail is the full view of one prover version.
type VersionDetail struct {
	Prover       string            `json:"prover"`
	Version      string            `json:"version"`
	ProofSystems []ProofSystemInfo `json:"proof_systems"`
	RegisteredAt string            `json:"registered_at"`
}

// Catalog answers prover discovery queries.
type Catalog struct {
	registry *vk.Registry
}

// NewCatalog creates a catalog over the key registry.
func NewCatalog(registry *vk.Registry) *Catalog {
	return &Catalog{registry: registry}
}

// Provers lists the provers the gateway can route to. Routing support is
// fixed at build time; zisk is currently the only one.
func (c *Catalog) Provers() []Info {
	return []Info{
		{Name: "zisk", ProofSystems: []string{"stark"}},
	}
}

// Versions lists the verifier versions registered for a prover, newest
// version string first, each with the proof systems its keys cover.
func (c *Catalog) Versions(prover string) ([]VersionInfo, error) {
	keys, err := c.registry.ListAll(prover)
	if err != nil {
		return nil, err
	}

	byVersion := map[string]*VersionInfo{}

	for _, key := range keys {
		info, ok := byVersion[key.Version]
		if !ok {
			info = &VersionInfo{Version: key.Version}
			byVersion[key.Version] = info
		}

		info.Active = info.Active || key.Active
		info.ProofSystems = appendUnique(info.ProofSystems, key.ProofSystem)
	}

	versions := make([]VersionInfo, 0, len(byVersion))
	for _, info := range byVersion {
		versions = append(versions, *info)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version > versions[j].Version
	})

	return versions, nil
}

// Version returns the detail view of one prover version.
func (c *Catalog) Version(prover, version string) (*VersionDetail, error) {
	keys, err := c.registry.ListAll(prover)
	if err != nil {
		return nil, err
	}

	detail := &VersionDetail{Prover: prover, Version: version}

	for _, key := range keys {
		if key.Version != version {
			continue
		}

		if detail.RegisteredAt == "" {
			detail.RegisteredAt = key.CreatedAt.Format(time.RFC3339)
		}

		detail.ProofSystems = append(detail.ProofSystems, ProofSystemInfo{
			Name:   key.ProofSystem,
			VKHash: key.Hash,
			Active: key.Active,
		})
	}

	if len(detail.ProofSystems) == 0 {
		return nil, ErrNotFound
	}

	return detail, nil
}

func appendUnique(systems []string, system string) []string {
	for _, existing := range systems {
		if existing == system {
			return systems
		}
	}

	return append(systems, system)
}
