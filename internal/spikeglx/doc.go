// Package spikeglx reads SpikeGLX recordings (.meta sidecar plus interleaved
// int16 .bin) and attaches them to an output container. It also drives an
// external spike sorter and imports its NumPy output.
package spikeglx
