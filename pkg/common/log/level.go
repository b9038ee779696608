/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"fmt"
	"strings"
	"sync"
)

const defaultLogLevel = INFO

var levelNames = map[Level]string{ //nolint:gochecknoglobals
	CRITICAL: "CRITICAL",
	ERROR:    "ERROR",
	WARNING:  "WARNING",
	INFO:     "INFO",
	DEBUG:    "DEBUG",
}

// ParseLevel returns the log level from a string representation.
func ParseLevel(level string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(name, level) {
			return l, nil
		}
	}

	return ERROR, fmt.Errorf("invalid log level: %s", level)
}

// ParseString returns the string representation of the level.
func ParseString(level Level) string {
	return levelNames[level]
}

type moduleLevels struct {
	levels map[string]Level
	mu     sync.RWMutex
}

var levels = &moduleLevels{levels: map[string]Level{}} //nolint:gochecknoglobals

// SetLevel sets the log level for the given module. An empty module sets the
// default level applied to modules without an explicit level.
func SetLevel(module string, level Level) {
	levels.mu.Lock()
	defer levels.mu.Unlock()

	levels.levels[module] = level
}

// GetLevel returns the log level for the given module.
func GetLevel(module string) Level {
	levels.mu.RLock()
	defer levels.mu.RUnlock()

	if level, ok := levels.levels[module]; ok {
		return level
	}

	if level, ok := levels.levels[""]; ok {
		return level
	}

	return defaultLogLevel
}

func levelEnabled(module string, level Level) bool {
	return GetLevel(module) >= level
}
