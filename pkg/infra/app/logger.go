package app

import (
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

// Logger returns the process-wide logger the bootstrap and the QA server
// share. Options.Log.Init configures it before the run function starts.
func Logger() core.Logger {
	return logger.Global()
}

// Infow logs a structured info line through the shared logger.
func Infow(msg string, keysAndValues ...interface{}) {
	logger.Infow(msg, keysAndValues...)
}

// Errorw logs a structured error line through the shared logger.
func Errorw(msg string, keysAndValues ...interface{}) {
	logger.Errorw(msg, keysAndValues...)
}

// Flush drains buffered log entries; called on shutdown.
func Flush() error {
	return logger.Flush()
}
