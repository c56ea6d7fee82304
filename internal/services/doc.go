// Package services defines shared utilities consumed by the conversion
// pipeline and its external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and session
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (missing metadata key, data shape mismatch, external tool failure) for
//     the run history.
//
// Use these helpers when wiring new pipeline steps so error reporting and
// observability stay uniform across the tool.
package services
