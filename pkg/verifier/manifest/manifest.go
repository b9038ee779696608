/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package manifest loads and validates the verifier artifact manifest. The
// manifest describes the available verifier versions and how to invoke each
// binary; the active version's binary additionally passes an integrity check
// before the executor serves traffic.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileName is the manifest file name inside the artifacts directory.
const FileName = "manifest.yaml"

// InterfaceTypeCLI is the only supported invocation interface.
const InterfaceTypeCLI = "cli"

// Output formats for interpreting verifier output.
const (
	OutputFormatJSON         = "json"
	OutputFormatExitCodeOnly = "exit_code_only"
)

// ErrIntegrity indicates the active binary failed its checksum check.
var ErrIntegrity = errors.New("binary integrity check failed")

// ErrValidation indicates a structurally invalid manifest.
var ErrValidation = errors.New("manifest validation failed")

// Manifest describes one prover's verifier artifacts.
type Manifest struct {
	Prover      string    `yaml:"prover"`
	Description string    `yaml:"description"`
	Versions    []Version `yaml:"versions"`
}

// Version describes one verifier version and its invocation interface.
type Version struct {
	Version   string    `yaml:"version"`
	Active    bool      `yaml:"active"`
	BinPath   string    `yaml:"bin_path"`
	SHA256    string    `yaml:"sha256"`
	VKPath    string    `yaml:"vk_path"`
	Interface Interface `yaml:"interface"`
}

// Interface describes how to invoke the verifier binary.
type Interface struct {
	Type            string `yaml:"type"`
	VerifyCommand   string `yaml:"verify_command"`
	Args            Args   `yaml:"args"`
	SuccessExitCode *int   `yaml:"success_exit_code"`
	OutputFormat    string `yaml:"output_format"`
}

// Args are argument templates. {proof_file}, {inputs_file} and {vk_file}
// placeholders are substituted at execution time; each expanded template is
// split on whitespace into individual argv entries.
type Args struct {
	Proof        string `yaml:"proof"`
	PublicInputs string `yaml:"public_inputs"`
	VK           string `yaml:"vk"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(content, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Validate checks the manifest structure. Exactly one version must be active.
func (m *Manifest) Validate() error {
	if m.Prover == "" {
		return fmt.Errorf("%w: prover name cannot be empty", ErrValidation)
	}

	if len(m.Versions) == 0 {
		return fmt.Errorf("%w: at least one version must be defined", ErrValidation)
	}

	activeCount := 0

	for i := range m.Versions {
		if m.Versions[i].Active {
			activeCount++
		}

		if err := m.Versions[i].validate(); err != nil {
			return err
		}
	}

	if activeCount == 0 {
		return fmt.Errorf("%w: at least one version must be active", ErrValidation)
	}

	if activeCount > 1 {
		return fmt.Errorf("%w: only one version can be active at a time", ErrValidation)
	}

	return nil
}

// ActiveVersion returns the single active version, or nil for an unvalidated
// manifest with none.
func (m *Manifest) ActiveVersion() *Version {
	for i := range m.Versions {
		if m.Versions[i].Active {
			return &m.Versions[i]
		}
	}

	return nil
}

func (v *Version) validate() error {
	if v.Version == "" {
		return fmt.Errorf("%w: version string cannot be empty", ErrValidation)
	}

	if v.BinPath == "" {
		return fmt.Errorf("%w: bin_path cannot be empty for version %s", ErrValidation, v.Version)
	}

	if v.Interface.Type != InterfaceTypeCLI {
		return fmt.Errorf("%w: unsupported interface type %q for version %s (supported: %s)",
			ErrValidation, v.Interface.Type, v.Version, InterfaceTypeCLI)
	}

	if format := v.Interface.OutputFormat; format != "" &&
		format != OutputFormatJSON && format != OutputFormatExitCodeOnly {
		return fmt.Errorf("%w: unsupported output_format %q for version %s (supported: %s, %s)",
			ErrValidation, format, v.Version, OutputFormatJSON, OutputFormatExitCodeOnly)
	}

	return nil
}

// ValidateBinary checks that the version's binary exists under artifactsDir,
// is a regular file with an execute bit set, and matches the declared SHA-256
// checksum. Checksum comparison is case-insensitive.
func ValidateBinary(artifactsDir string, version *Version) error {
	fullPath := filepath.Join(artifactsDir, version.BinPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: verifier binary not found at %s", ErrValidation, fullPath)
		}

		return fmt.Errorf("stat verifier binary: %w", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: verifier binary path is not a regular file: %s", ErrValidation, fullPath)
	}

	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: verifier binary is not executable: %s", ErrValidation, fullPath)
	}

	computed, err := ComputeChecksum(fullPath)
	if err != nil {
		return err
	}

	if !strings.EqualFold(computed, version.SHA256) {
		return fmt.Errorf("%w: checksum mismatch for %s: expected %s, got %s",
			ErrIntegrity, fullPath, version.SHA256, computed)
	}

	return nil
}

// ComputeChecksum returns the hex SHA-256 of the file at path.
func ComputeChecksum(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open binary: %w", err)
	}

	defer file.Close() //nolint:errcheck

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash binary: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
