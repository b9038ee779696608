/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"sync"
)

// Level is a log level for a logging message.
type Level int

// Log levels.
const (
	CRITICAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// Logger represents a general-purpose leveled logger.
type Logger interface {
	Fatalf(msg string, args ...interface{})
	Panicf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Debugf(msg string, args ...interface{})
}

// LoggerProvider is a factory for moduled loggers.
type LoggerProvider interface {
	GetLogger(module string) Logger
}

// Log is an implementation of Logger interface.
// It encapsulates a default or custom logger to provide module and level based logging.
type Log struct {
	instance Logger
	module   string
	once     sync.Once
}

// New creates and returns a Logger implementation based on the given module name.
// note: the underlying logger instance is lazy initialized on first use.
// To use your own logger implementation provide a logger provider in 'Initialize()' before logging any line.
// If 'Initialize()' is not called before logging any line then the default logging implementation is used.
func New(module string) *Log {
	return &Log{module: module}
}

// Fatalf calls Fatalf function of underlying logger.
func (l *Log) Fatalf(msg string, args ...interface{}) {
	l.logger().Fatalf(msg, args...)
}

// Panicf calls Panicf function of underlying logger.
func (l *Log) Panicf(msg string, args ...interface{}) {
	l.logger().Panicf(msg, args...)
}

// Errorf calls Errorf function of underlying logger.
func (l *Log) Errorf(msg string, args ...interface{}) {
	if !levelEnabled(l.module, ERROR) {
		return
	}

	l.logger().Errorf(msg, args...)
}

// Warnf calls Warnf function of underlying logger.
func (l *Log) Warnf(msg string, args ...interface{}) {
	if !levelEnabled(l.module, WARNING) {
		return
	}

	l.logger().Warnf(msg, args...)
}

// Infof calls Infof function of underlying logger.
func (l *Log) Infof(msg string, args ...interface{}) {
	if !levelEnabled(l.module, INFO) {
		return
	}

	l.logger().Infof(msg, args...)
}

// Debugf calls Debugf function of underlying logger.
func (l *Log) Debugf(msg string, args ...interface{}) {
	if !levelEnabled(l.module, DEBUG) {
		return
	}

	l.logger().Debugf(msg, args...)
}

func (l *Log) logger() Logger {
	l.once.Do(func() {
		l.instance = loggerProvider().GetLogger(l.module)
	})

	return l.instance
}

var (
	loggerProviderInstance LoggerProvider //nolint:gochecknoglobals
	loggerProviderOnce     sync.Once      //nolint:gochecknoglobals
)

// Initialize sets a custom logger provider. It may be called at most once, before
// any logging happens; later calls are ignored.
func Initialize(p LoggerProvider) {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = p
	})
}

func loggerProvider() LoggerProvider {
	loggerProviderOnce.Do(func() {
		loggerProviderInstance = &defProvider{}
	})

	return loggerProviderInstance
}
