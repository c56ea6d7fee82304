// Package nwbhdf5 writes nwb.File containers as NWB 2.x HDF5 files and reads
// back their table sizes.
//
// Strings are stored as fixed-length, zero-padded records. Ragged columns
// follow the VectorData plus VectorIndex convention, with the index holding
// the exclusive end offset of each row. Object references (electrode group
// of a unit, device of a group) are written as path or name strings.
package nwbhdf5
