// Package logging adapts the engines in this module to the structured
// logger used across the teacher stack, so every component logs through
// the same sugared, service-named interface rather than the standard
// library's log package.
package logging

import (
	"github.com/datatrails/go-datatrails-common/logger"
)

// Logger is the interface every engine depends on. It is satisfied by
// logger.Logger; engines never import the logger package directly so
// tests can supply a no-op implementation.
type Logger = logger.Logger

// Init configures the process-wide logger. Call once from main before any
// engine is constructed. level is one of "DEBUG", "INFO", "NOOP" (as
// accepted by logger.New).
func Init(level string) {
	logger.New(level)
}

// Close flushes any buffered log entries. Call via defer in main.
func Close() {
	logger.OnExit()
}

// For returns a logger scoped to serviceName, e.g. "writerpool", "signer".
func For(serviceName string) Logger {
	return logger.Sugar.WithServiceName(serviceName)
}
