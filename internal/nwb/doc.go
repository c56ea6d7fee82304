// Package nwb holds the in-memory NWB container assembled by the pipeline.
//
// Devices and electrode groups are created through the File so later rows
// (electrodes, units, template units) can link to them by reference; a row
// that points at a group the File did not create is rejected with
// ErrForeignReference. Serialization lives behind the Writer interface.
package nwb
