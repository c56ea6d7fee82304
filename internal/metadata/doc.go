// Package metadata loads the YAML session descriptor that drives a
// conversion.
//
// The descriptor mirrors the sections of the output container (NWBFile,
// Subject, Ecephys, Behavior, LabMetaData) plus an Output naming template.
// Required keys are checked where they are used; a missing key yields a
// MissingKeyError that matches services.ErrMissingKey. LoadAll reads
// multi-document batch files with one experiment per document.
package metadata
