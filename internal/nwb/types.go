package nwb

import "time"

// Device is a recording device such as a probe.
type Device struct {
	Name         string
	Description  string
	Manufacturer string
}

// ElectrodeGroup groups electrodes on one shank of a device.
type ElectrodeGroup struct {
	Name        string
	Description string
	Location    string
	Device      *Device
}

// Electrode is one row of the electrodes table. Unknown absolute coordinates
// and impedance are NaN.
type Electrode struct {
	ID        int
	X, Y, Z   float64
	Imp       float64
	Location  string
	Filtering string
	Group     *ElectrodeGroup
	RelX      float64
	RelY      float64
}

// Unit is one manually curated unit.
type Unit struct {
	ID           int
	SpikeTimes   []float64
	Quality      string
	WaveformMean [][]float64 // samples x channels
	Group        *ElectrodeGroup
}

// TemplateUnit is one unit produced by template matching. Amplitudes holds
// one scaling amplitude per spike and is stored ragged.
type TemplateUnit struct {
	ID         int
	SpikeTimes []float64
	Amplitudes []float64
	Group      *ElectrodeGroup
}

// Trial is one row of the trials interval table.
type Trial struct {
	StartTime float64
	StopTime  float64
	Contrast  float64
}

// SpatialSeries is a regularly sampled 1-D position trace.
type SpatialSeries struct {
	Name           string
	Description    string
	Unit           string
	ReferenceFrame string
	Conversion     float64
	StartingTime   float64
	Rate           float64
	Data           []float64
}

// Position is the behavioral container holding spatial series.
type Position struct {
	Name   string
	Series []SpatialSeries
}

// EventSeries is an irregularly sampled series with explicit timestamps.
type EventSeries struct {
	Name        string
	Description string
	Unit        string
	Data        []float64
	Timestamps  []float64
}

// ElectricalSeries is a raw acquisition trace, stored samples x channels.
type ElectricalSeries struct {
	Name         string
	Description  string
	Data         []int16
	Channels     int
	StartingTime float64
	Rate         float64
	Conversion   float64
	Electrodes   []int
}

// Samples returns the number of time samples in the series.
func (es *ElectricalSeries) Samples() int {
	if es.Channels <= 0 {
		return 0
	}
	return len(es.Data) / es.Channels
}

// Subject holds demographic fields.
type Subject struct {
	SubjectID   string
	Species     string
	Sex         string
	Age         string
	Genotype    string
	Strain      string
	Weight      string
	DateOfBirth string
	Description string
}

// LabMetaData is the lab-specific extension block. Nil pointers and empty
// strings mark fields no source provided; they are left out of the file.
type LabMetaData struct {
	Name             string
	SamplingRate     *float64
	NumElectrodes    *int
	RawFilePath      string
	RawFileOffset    *int64
	RawFileDtype     string
	HighPassFiltered *bool
	MovieStartTime   *float64
	BrainRegion      string
	Extra            map[string]string
}

// Empty reports whether no field beyond the name is set.
func (m LabMetaData) Empty() bool {
	return m.SamplingRate == nil && m.NumElectrodes == nil && m.RawFilePath == "" &&
		m.RawFileOffset == nil && m.RawFileDtype == "" && m.HighPassFiltered == nil &&
		m.MovieStartTime == nil && m.BrainRegion == "" && len(m.Extra) == 0
}

// Session holds the top-level NWBFile fields.
type Session struct {
	Description           string
	Identifier            string
	StartTime             time.Time
	SessionID             string
	ExperimentDescription string
	Experimenter          []string
	Institution           string
	Lab                   string
	Keywords              []string
	RelatedPublications   []string
	Notes                 string
}
