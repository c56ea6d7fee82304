// Package config loads, normalizes, and validates nwbconv tool configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the NWBCONV_SORTER environment
// fallback. Session metadata (subject, devices, behavior) does not live here;
// it is read per run from the YAML descriptor by package metadata.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, parsed size limits, and clear validation errors.
package config
