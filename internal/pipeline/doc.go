// Package pipeline assembles one NWB file from a metadata descriptor and a
// set of source files.
//
// A Run validates the descriptor, takes an advisory lock on <output>.lock,
// builds the container (trials, position and lick series, probe tables,
// units, optional raw acquisition and spike sorting, subject and lab
// metadata) and hands it to an nwb.Writer exactly once. Processed data is
// read through a processed.Loader so the assembly can be exercised without
// MATLAB files.
package pipeline
