/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package engine executes manifest-described verifier binaries in a
// constrained fashion: proof material goes through owner-only temp files
// that are removed on every path, and only the manifest's argument
// templates reach the child process command line.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/xavi-pinsach/prova/pkg/common/log"
	"github.com/xavi-pinsach/prova/pkg/verifier/manifest"
)

var logger = log.New("prova/engine")

// ErrNoActiveVersion indicates the manifest has no active version to run.
var ErrNoActiveVersion = errors.New("no active verifier version configured")

// ErrTimeout indicates the verifier exceeded the configured wall-clock limit.
var ErrTimeout = errors.New("verifier execution timed out")

// ErrUnsupportedInterface indicates the active version declares an interface
// type the engine does not implement.
var ErrUnsupportedInterface = errors.New("verifier interface type not implemented")

// Result is a completed verification verdict. Error carries the verifier's
// stderr or reported error when the proof is invalid.
type Result struct {
	Valid bool
	Error string
}

// Engine runs the active verifier version from a validated manifest.
type Engine struct {
	artifactsDir string
	manifest     *manifest.Manifest
	timeout      time.Duration
}

// Opt customizes the engine.
type Opt func(*Engine)

// WithTimeout bounds each verifier execution. Zero (the default) means
// unbounded; the gateway's own request timeout is then the only limit.
func WithTimeout(timeout time.Duration) Opt {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// New creates an engine over a loaded manifest. The manifest is expected to
// have passed validation and the active binary its integrity check.
func New(artifactsDir string, m *manifest.Manifest, opts ...Opt) *Engine {
	e := &Engine{artifactsDir: artifactsDir, manifest: m}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Prover returns the manifest's prover name.
func (e *Engine) Prover() string {
	return e.manifest.Prover
}

// ActiveVersion returns the active verifier version string, or "unknown".
func (e *Engine) ActiveVersion() string {
	if version := e.manifest.ActiveVersion(); version != nil {
		return version.Version
	}

	return "unknown"
}

// Verify runs the active verifier against the proof and public inputs. A
// returned error means the engine could not produce a verdict; an invalid
// proof is a nil error with Result.Valid=false.
func (e *Engine) Verify(ctx context.Context, proof []byte, publicInputs []string) (*Result, error) {
	version := e.manifest.ActiveVersion()
	if version == nil {
		return nil, ErrNoActiveVersion
	}

	if version.Interface.Type != manifest.InterfaceTypeCLI {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInterface, version.Interface.Type)
	}

	proofFile, err := writeTempFile("prova-proof-*", proof)
	if err != nil {
		return nil, fmt.Errorf("write proof file: %w", err)
	}

	defer removeFile(proofFile)

	if publicInputs == nil {
		publicInputs = []string{}
	}

	inputsJSON, err := json.Marshal(publicInputs)
	if err != nil {
		return nil, fmt.Errorf("serialize public inputs: %w", err)
	}

	inputsFile, err := writeTempFile("prova-inputs-*", inputsJSON)
	if err != nil {
		return nil, fmt.Errorf("write inputs file: %w", err)
	}

	defer removeFile(inputsFile)

	argv := e.buildArgs(version, proofFile, inputsFile)

	logger.Infof("executing verifier %s version %s (proof %d bytes)",
		e.manifest.Prover, version.Version, len(proof))

	stdout, stderr, exitCode, err := e.run(ctx, filepath.Join(e.artifactsDir, version.BinPath), argv)
	if err != nil {
		return nil, err
	}

	result := interpret(&version.Interface, stdout, stderr, exitCode)

	logger.Infof("verification complete: prover=%s valid=%t", e.manifest.Prover, result.Valid)

	return result, nil
}

func (e *Engine) buildArgs(version *manifest.Version, proofFile, inputsFile string) []string {
	var argv []string

	iface := &version.Interface

	if iface.VerifyCommand != "" {
		argv = append(argv, iface.VerifyCommand)
	}

	if iface.Args.Proof != "" {
		argv = append(argv, strings.Fields(strings.ReplaceAll(iface.Args.Proof, "{proof_file}", proofFile))...)
	}

	if iface.Args.PublicInputs != "" {
		argv = append(argv, strings.Fields(strings.ReplaceAll(iface.Args.PublicInputs, "{inputs_file}", inputsFile))...)
	}

	if iface.Args.VK != "" && version.VKPath != "" {
		vkFile := filepath.Join(e.artifactsDir, version.VKPath)
		argv = append(argv, strings.Fields(strings.ReplaceAll(iface.Args.VK, "{vk_file}", vkFile))...)
	}

	return argv
}

func (e *Engine) run(ctx context.Context, binPath string, argv []string) (stdout, stderr []byte, exitCode int, err error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var outBuf, errBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, binPath, argv...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, nil, 0, ErrTimeout
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, nil, 0, fmt.Errorf("execute verifier: %w", runErr)
		}

		return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitCode(), nil
	}

	return outBuf.Bytes(), errBuf.Bytes(), 0, nil
}

// verdict is the JSON shape a json-format verifier prints on stdout.
type verdict struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
}

func interpret(iface *manifest.Interface, stdout, stderr []byte, exitCode int) *Result {
	if iface.OutputFormat == manifest.OutputFormatJSON {
		var v verdict
		if err := json.Unmarshal(stdout, &v); err == nil {
			return &Result{Valid: v.Valid, Error: v.Error}
		}
		// malformed stdout falls back to exit-code interpretation
	}

	successCode := 0
	if iface.SuccessExitCode != nil {
		successCode = *iface.SuccessExitCode
	}

	if exitCode == successCode {
		return &Result{Valid: true}
	}

	return &Result{Valid: false, Error: strings.ToValidUTF8(string(stderr), "�")}
}

func writeTempFile(pattern string, content []byte) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}

	if err := file.Chmod(0o600); err != nil {
		file.Close()           //nolint:errcheck
		removeFile(file.Name())

		return "", err
	}

	if _, err := file.Write(content); err != nil {
		file.Close()           //nolint:errcheck
		removeFile(file.Name())

		return "", err
	}

	if err := file.Close(); err != nil {
		removeFile(file.Name())

		return "", err
	}

	return file.Name(), nil
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove temp file %s: %s", path, err)
	}
}
