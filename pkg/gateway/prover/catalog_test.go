/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prover_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xavi-pinsach/prova/component/storageutil/mem"
	"github.com/xavi-pinsach/prova/pkg/gateway/prover"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
)

func TestCatalog_Provers(t *testing.T) {
	catalog, _ := newCatalog(t)

	provers := catalog.Provers()
	require.Len(t, provers, 1)
	require.Equal(t, "zisk", provers[0].Name)
	require.Equal(t, []string{"stark"}, provers[0].ProofSystems)
}

func TestCatalog_Versions(t *testing.T) {
	catalog, registry := newCatalog(t)

	register(t, registry, "zisk", "0.6.1", "stark")
	register(t, registry, "zisk", "0.7.0", "stark")
	register(t, registry, "zisk", "0.7.0", "fflonk")

	t.Run("grouped by version, newest first", func(t *testing.T) {
		versions, err := catalog.Versions("zisk")
		require.NoError(t, err)
		require.Len(t, versions, 2)
		require.Equal(t, "0.7.0", versions[0].Version)
		require.ElementsMatch(t, []string{"stark", "fflonk"}, versions[0].ProofSystems)
		require.Equal(t, "0.6.1", versions[1].Version)
	})

	t.Run("version is active when any of its keys is", func(t *testing.T) {
		versions, err := catalog.Versions("zisk")
		require.NoError(t, err)
		require.True(t, versions[0].Active)
	})

	t.Run("prover with no keys yields empty list", func(t *testing.T) {
		versions, err := catalog.Versions("stark")
		require.NoError(t, err)
		require.Empty(t, versions)
	})
}

func TestCatalog_Version(t *testing.T) {
	catalog, registry := newCatalog(t)

	key := register(t, registry, "zisk", "0.7.0", "stark")
	register(t, registry, "zisk", "0.7.0", "fflonk")

	t.Run("detail with proof systems", func(t *testing.T) {
		detail, err := catalog.Version("zisk", "0.7.0")
		require.NoError(t, err)
		require.Equal(t, "zisk", detail.Prover)
		require.Equal(t, "0.7.0", detail.Version)
		require.Len(t, detail.ProofSystems, 2)
		require.NotEmpty(t, detail.RegisteredAt)

		var hashes []string
		for _, system := range detail.ProofSystems {
			hashes = append(hashes, system.VKHash)
		}

		require.Contains(t, hashes, key.Hash)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := catalog.Version("zisk", "9.9.9")
		require.ErrorIs(t, err, prover.ErrNotFound)
	})
}

func newCatalog(t *testing.T) (*prover.Catalog, *vk.Registry) {
	t.Helper()

	registry, err := vk.NewRegistry(mem.NewProvider())
	require.NoError(t, err)

	return prover.NewCatalog(registry), registry
}

func register(t *testing.T, registry *vk.Registry, proverName, version, proofSystem string) *vk.VerificationKey {
	t.Helper()

	key, err := registry.Create(vk.CreateRequest{
		Prover:      proverName,
		Version:     version,
		ProofSystem: proofSystem,
		Data:        json.RawMessage(fmt.Sprintf(`{"prover":%q,"version":%q,"system":%q}`, proverName, version, proofSystem)),
	}, uuid.New())
	require.NoError(t, err)

	return key
}
