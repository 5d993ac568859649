// Package logging provides structured logging for the rostra orchestrator.
//
// This package wraps go.uber.org/zap to provide JSON-formatted logs with
// context propagation support for debugging and post-hoc analysis. It is
// designed to help troubleshoot live debate sessions by providing
// structured, filterable logs that can be analyzed after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via zap
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Runtime level changes via an atomic level (config hot-reload)
//   - Context propagation (session ID, participant ID, phase)
//   - File output with size-based rotation via lumberjack
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// delegates to zap, which is designed for concurrent access. Child loggers
// created via With* methods share the underlying core safely.
//
// # Basic Usage
//
// Create a logger from options:
//
//	logger, err := logging.New(logging.Options{Level: "INFO", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	// Log messages at various levels
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("operation completed", "duration_ms", 150)
//	logger.Warn("potential issue", "threshold", 100)
//	logger.Error("operation failed", "error", err)
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	// Add session context
//	sessionLogger := logger.WithSession("sess-abc123")
//
//	// Add participant context
//	userLogger := sessionLogger.WithParticipant("user-def456")
//
//	// Add phase context
//	phaseLogger := userLogger.WithPhase("rebuttal")
//
//	// All logs from phaseLogger will include session_id, participant_id, and phase
//	phaseLogger.Info("speech accepted", "length", 1204)
//
// Output:
//
//	{"ts":"...","level":"info","msg":"speech accepted","session_id":"sess-abc123","participant_id":"user-def456","phase":"rebuttal","length":1204}
//
// # File Output
//
// When Options.File is set, logs are written to that path and rotated by
// size, keeping a bounded number of compressed backups:
//
//	logger, err := logging.New(logging.Options{
//	    Level:      "DEBUG",
//	    File:       "/var/log/rostra/server.log",
//	    MaxSizeMB:  50,
//	    MaxBackups: 5,
//	    Compress:   true,
//	})
//
// # Testing
//
// Use [NopLogger] for components under test that require a logger but whose
// output is irrelevant:
//
//	svc := router.New(store, logging.NopLogger())
package logging
