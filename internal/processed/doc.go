// Package processed defines the in-memory form of a processed session file
// (behavioral traces plus the spike-sorting struct) and the Loader contract
// that file readers implement.
package processed
