/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"fmt"
	stdlog "log"
	"os"
)

// defProvider is the logger provider used when none is supplied via Initialize().
type defProvider struct{}

func (p *defProvider) GetLogger(module string) Logger {
	return &defLog{
		logger: stdlog.New(os.Stderr, fmt.Sprintf(" [%s] ", module), stdlog.Ldate|stdlog.Ltime|stdlog.LUTC),
	}
}

// defLog is a stderr-backed Logger with level prefixes.
type defLog struct {
	logger *stdlog.Logger
}

func (l *defLog) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(l.prefixed(CRITICAL, format), args...)
}

func (l *defLog) Panicf(format string, args ...interface{}) {
	l.logger.Panicf(l.prefixed(CRITICAL, format), args...)
}

func (l *defLog) Errorf(format string, args ...interface{}) {
	l.logger.Printf(l.prefixed(ERROR, format), args...)
}

func (l *defLog) Warnf(format string, args ...interface{}) {
	l.logger.Printf(l.prefixed(WARNING, format), args...)
}

func (l *defLog) Infof(format string, args ...interface{}) {
	l.logger.Printf(l.prefixed(INFO, format), args...)
}

func (l *defLog) Debugf(format string, args ...interface{}) {
	l.logger.Printf(l.prefixed(DEBUG, format), args...)
}

func (l *defLog) prefixed(level Level, format string) string {
	return fmt.Sprintf("-> %s %s", ParseString(level), format)
}
