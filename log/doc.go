// Package log provides a simple, leveled logging interface for the workflow
// engine and its backends.
//
// The package supports five log levels in order of increasing severity:
// LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError and LogLevelNone
// (which disables output entirely).
//
// # Example Usage
//
//	logger := log.NewDefaultLogger(log.LogLevelInfo)
//
//	logger.Info("run started")
//	logger.Debug("resolving bindings for %s", vertexID)
//	logger.Warn("subscriber lagging: %d dropped", count)
//	logger.Error("vertex %s failed: %v", vertexID, err)
//
// A package-level logger is available for code that does not want to thread a
// Logger through every call site:
//
//	log.SetLogLevel(log.LogLevelDebug)
//	log.Debug("scheduling %d ready vertices", n)
//
// # golog Integration
//
// For users who prefer the github.com/kataras/golog library, a minimal
// wrapper is provided:
//
//	glogger := golog.New()
//	glogger.SetPrefix("[myapp] ")
//
//	logger := log.NewGologLogger(glogger)
//	logger.SetLevel(log.LogLevelDebug)
//
// The wrapper respects this package's levels while using golog's formatting.
//
// Custom logging solutions only need to implement the four-method Logger
// interface.
package log
