/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package manifest_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xavi-pinsach/prova/pkg/verifier/manifest"
)

const sampleManifest = `
prover: zisk
description: ZisK STARK verifier
versions:
  - version: "0.7.0"
    active: true
    bin_path: bin/zisk-verify
    sha256: "%s"
    vk_path: keys/fib.vk
    interface:
      type: cli
      verify_command: verify
      args:
        proof: "--proof {proof_file}"
        public_inputs: "--inputs {inputs_file}"
        vk: "--vk {vk_file}"
      success_exit_code: 0
      output_format: json
  - version: "0.6.1"
    active: false
    bin_path: bin/zisk-verify-0.6.1
    sha256: "deadbeef"
    interface:
      type: cli
`

func TestLoad(t *testing.T) {
	t.Run("valid manifest", func(t *testing.T) {
		path := writeManifest(t, strings.ReplaceAll(sampleManifest, "%s", strings.Repeat("ab", 32)))

		m, err := manifest.Load(path)
		require.NoError(t, err)
		require.Equal(t, "zisk", m.Prover)
		require.Len(t, m.Versions, 2)

		active := m.ActiveVersion()
		require.NotNil(t, active)
		require.Equal(t, "0.7.0", active.Version)
		require.Equal(t, "verify", active.Interface.VerifyCommand)
		require.Equal(t, "--proof {proof_file}", active.Interface.Args.Proof)
		require.NotNil(t, active.Interface.SuccessExitCode)
		require.Equal(t, 0, *active.Interface.SuccessExitCode)
		require.Equal(t, manifest.OutputFormatJSON, active.Interface.OutputFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := manifest.Load(filepath.Join(t.TempDir(), "manifest.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeManifest(t, "prover: [")

		_, err := manifest.Load(path)
		require.Error(t, err)
	})
}

func TestManifest_Validate(t *testing.T) {
	valid := func() *manifest.Manifest {
		return &manifest.Manifest{
			Prover: "zisk",
			Versions: []manifest.Version{{
				Version:   "0.7.0",
				Active:    true,
				BinPath:   "bin/zisk-verify",
				SHA256:    strings.Repeat("ab", 32),
				Interface: manifest.Interface{Type: manifest.InterfaceTypeCLI},
			}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("empty prover", func(t *testing.T) {
		m := valid()
		m.Prover = ""
		require.ErrorIs(t, m.Validate(), manifest.ErrValidation)
	})

	t.Run("no versions", func(t *testing.T) {
		m := valid()
		m.Versions = nil
		require.ErrorIs(t, m.Validate(), manifest.ErrValidation)
	})

	t.Run("no active version", func(t *testing.T) {
		m := valid()
		m.Versions[0].Active = false
		require.ErrorIs(t, m.Validate(), manifest.ErrValidation)
	})

	t.Run("two active versions", func(t *testing.T) {
		m := valid()
		second := m.Versions[0]
		second.Version = "0.6.1"
		m.Versions = append(m.Versions, second)

		err := m.Validate()
		require.ErrorIs(t, err, manifest.ErrValidation)
		require.Contains(t, err.Error(), "only one version can be active")
	})

	t.Run("empty bin_path", func(t *testing.T) {
		m := valid()
		m.Versions[0].BinPath = ""
		require.ErrorIs(t, m.Validate(), manifest.ErrValidation)
	})

	t.Run("unsupported interface type", func(t *testing.T) {
		m := valid()
		m.Versions[0].Interface.Type = "grpc"
		require.ErrorIs(t, m.Validate(), manifest.ErrValidation)
	})

	t.Run("unsupported output format", func(t *testing.T) {
		m := valid()
		m.Versions[0].Interface.OutputFormat = "xml"
		require.ErrorIs(t, m.Validate(), manifest.ErrValidation)
	})
}

func TestValidateBinary(t *testing.T) {
	newBinary := func(t *testing.T, mode os.FileMode) (string, *manifest.Version) {
		t.Helper()

		dir := t.TempDir()
		content := []byte("#!/bin/sh\nexit 0\n")

		require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "verify"), content, mode))

		digest := sha256.Sum256(content)

		return dir, &manifest.Version{
			Version: "0.7.0",
			BinPath: "bin/verify",
			SHA256:  hex.EncodeToString(digest[:]),
		}
	}

	t.Run("valid binary", func(t *testing.T) {
		dir, version := newBinary(t, 0o755)
		require.NoError(t, manifest.ValidateBinary(dir, version))
	})

	t.Run("checksum comparison is case-insensitive", func(t *testing.T) {
		dir, version := newBinary(t, 0o755)
		version.SHA256 = strings.ToUpper(version.SHA256)
		require.NoError(t, manifest.ValidateBinary(dir, version))
	})

	t.Run("missing binary", func(t *testing.T) {
		dir, version := newBinary(t, 0o755)
		version.BinPath = "bin/missing"
		require.ErrorIs(t, manifest.ValidateBinary(dir, version), manifest.ErrValidation)
	})

	t.Run("not a regular file", func(t *testing.T) {
		dir, version := newBinary(t, 0o755)
		version.BinPath = "bin"
		require.ErrorIs(t, manifest.ValidateBinary(dir, version), manifest.ErrValidation)
	})

	t.Run("not executable", func(t *testing.T) {
		dir, version := newBinary(t, 0o644)
		require.ErrorIs(t, manifest.ValidateBinary(dir, version), manifest.ErrValidation)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		dir, version := newBinary(t, 0o755)
		version.SHA256 = strings.Repeat("00", 32)

		err := manifest.ValidateBinary(dir, version)
		require.ErrorIs(t, err, manifest.ErrIntegrity)
		require.Contains(t, err.Error(), "checksum mismatch")
	})
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), manifest.FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}
