// Package logging provides a minimal logging interface and adapters for Roundtable.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the coordinator, executors, tools and relays use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RoundtableLogger with run scoped context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	coord := engine.New(executor, func(o *engine.Options) { o.Logger = logger })
package logging
