// Package logging provides structured logging for ccufind.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used by discovery: probes sent, replies received and per-interface
// faults that were absorbed.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Probe contents, hex dumps, receive timeouts
//   - Info: Replies received, sessions started and finished
//   - Warn: Interfaces skipped because their session failed
//   - Error: Fatal issues (no usable interface, config errors)
//
// # Configuration
//
// Logging is silent unless a level is requested, either on the command line
// or through CCUFIND_LOG_LEVEL:
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Output goes to stderr in console format so that stdout carries only
// scan results:
//
//	2026-03-02T10:30:45.123+0100  INFO  discovery  Reply received
//	  interface=eth0 src=192.168.1.50 length=42
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
