// Package ecephys builds the probe, electrode and unit tables from the
// spike-sorting struct of a processed session.
package ecephys
