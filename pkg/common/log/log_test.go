/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, level := range map[string]Level{
		"CRITICAL": CRITICAL,
		"ERROR":    ERROR,
		"WARNING":  WARNING,
		"info":     INFO,
		"Debug":    DEBUG,
	} {
		parsed, err := ParseLevel(name)
		require.NoError(t, err)
		require.Equal(t, level, parsed)
	}

	_, err := ParseLevel("VERBOSE")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log level")
}

func TestParseString(t *testing.T) {
	require.Equal(t, "WARNING", ParseString(WARNING))
	require.Equal(t, "DEBUG", ParseString(DEBUG))
}

func TestModuleLevels(t *testing.T) {
	require.Equal(t, INFO, GetLevel("test-module-unset"))

	SetLevel("test-module-a", DEBUG)
	require.Equal(t, DEBUG, GetLevel("test-module-a"))

	// default applies to modules without an explicit level
	SetLevel("", ERROR)
	require.Equal(t, ERROR, GetLevel("test-module-b"))
	require.Equal(t, DEBUG, GetLevel("test-module-a"))

	require.True(t, levelEnabled("test-module-a", DEBUG))
	require.False(t, levelEnabled("test-module-b", INFO))

	SetLevel("", defaultLogLevel)
}

type recordingLogger struct {
	entries []string
}

func (r *recordingLogger) log(msg string) { r.entries = append(r.entries, msg) }

func (r *recordingLogger) Fatalf(msg string, _ ...interface{}) { r.log(msg) }
func (r *recordingLogger) Panicf(msg string, _ ...interface{}) { r.log(msg) }
func (r *recordingLogger) Errorf(msg string, _ ...interface{}) { r.log(msg) }
func (r *recordingLogger) Warnf(msg string, _ ...interface{})  { r.log(msg) }
func (r *recordingLogger) Infof(msg string, _ ...interface{})  { r.log(msg) }
func (r *recordingLogger) Debugf(msg string, _ ...interface{}) { r.log(msg) }

func TestLogLevelFiltering(t *testing.T) {
	recorder := &recordingLogger{}
	logger := &Log{module: "test-module-filter", instance: recorder}
	logger.once.Do(func() {})

	SetLevel("test-module-filter", WARNING)

	logger.Debugf("dropped")
	logger.Infof("dropped")
	logger.Warnf("kept-warn")
	logger.Errorf("kept-error")

	require.Equal(t, []string{"kept-warn", "kept-error"}, recorder.entries)
}
