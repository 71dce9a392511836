// Package logging provides structured logging for the navajo server engine.
//
// This package wraps a zap logger with convenience functions for common logging
// patterns used throughout the engine. It provides both general logging functions
// and specialized functions for connection, HTTP and WebSocket events.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, frame parsing, request lines)
//   - Info: Normal operations (connections, handshakes, service start/stop)
//   - Warn: Non-fatal issues (rejected peers, connection drops)
//   - Error: Failures (TLS handshake errors, write errors, startup failures)
//
// # Log Sink
//
// Append is the sink contract used by the engine for events that carry a
// severity and an optional details string:
//
//	logging.Append(logging.SeverityAlert, "WebServer: peer rejected", "10.0.0.7")
//
// Severities DEBUG, INFO, WARNING, ALERT, ERROR and FATAL map onto zap levels.
// AppendUniq records a given message only once.
//
// # Configuration
//
// Initialize logging at server startup:
//
//	if err := logging.InitializeWithFormat("debug", "json"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Embedding applications may install their own logger with SetLogger.
// When neither a level nor NAVAJO_LOG_LEVEL is set the logger is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
