// Package logging assembles structured slog loggers used across nwbconv.
//
// It owns the console and JSON handlers, parses level and output settings,
// and exposes context-aware helpers so pipeline steps automatically tag log
// lines with run IDs, stage names, and session identifiers. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
