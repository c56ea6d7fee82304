package nwb

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Version is the NWB schema version written to output files.
const Version = "2.5.0"

// ErrForeignReference is returned when a row references an object that was
// not created by the same File.
var ErrForeignReference = errors.New("reference to object not created in this file")

// File is the in-memory output container. It is built incrementally and
// serialized once by a Writer.
type File struct {
	Session        Session
	FileCreateDate time.Time

	Devices         []*Device
	ElectrodeGroups []*ElectrodeGroup
	Electrodes      []Electrode
	Units           []Unit
	TemplateUnits   []TemplateUnit
	Trials          []Trial
	Position        *Position
	Events          []EventSeries
	Acquisition     []*ElectricalSeries
	Subject         *Subject
	LabMetaData     *LabMetaData
}

// Writer serializes a File to path.
type Writer interface {
	Write(path string, f *File) error
}

// NewFile creates an empty container for session.
func NewFile(session Session) (*File, error) {
	if strings.TrimSpace(session.Identifier) == "" {
		return nil, errors.New("nwb: session identifier is required")
	}
	if strings.TrimSpace(session.Description) == "" {
		return nil, errors.New("nwb: session description is required")
	}
	if session.StartTime.IsZero() {
		return nil, errors.New("nwb: session start time is required")
	}
	return &File{Session: session, FileCreateDate: time.Now().UTC()}, nil
}

// CreateDevice registers a device and returns the stored reference.
func (f *File) CreateDevice(d Device) (*Device, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, errors.New("nwb: device name is required")
	}
	for _, existing := range f.Devices {
		if existing.Name == d.Name {
			return nil, fmt.Errorf("nwb: device %q already exists", d.Name)
		}
	}
	dev := d
	f.Devices = append(f.Devices, &dev)
	return &dev, nil
}

// CreateElectrodeGroup registers a group. Its device must come from CreateDevice.
func (f *File) CreateElectrodeGroup(g ElectrodeGroup) (*ElectrodeGroup, error) {
	if strings.TrimSpace(g.Name) == "" {
		return nil, errors.New("nwb: electrode group name is required")
	}
	if !slices.Contains(f.Devices, g.Device) {
		return nil, fmt.Errorf("nwb: electrode group %q: device: %w", g.Name, ErrForeignReference)
	}
	for _, existing := range f.ElectrodeGroups {
		if existing.Name == g.Name {
			return nil, fmt.Errorf("nwb: electrode group %q already exists", g.Name)
		}
	}
	group := g
	f.ElectrodeGroups = append(f.ElectrodeGroups, &group)
	return &group, nil
}

func (f *File) ownsGroup(g *ElectrodeGroup) bool {
	return g != nil && slices.Contains(f.ElectrodeGroups, g)
}

// AddElectrode appends a row to the electrodes table.
func (f *File) AddElectrode(e Electrode) error {
	if !f.ownsGroup(e.Group) {
		return fmt.Errorf("nwb: electrode %d: group: %w", e.ID, ErrForeignReference)
	}
	f.Electrodes = append(f.Electrodes, e)
	return nil
}

// AddUnit appends a row to the curated units table.
func (f *File) AddUnit(u Unit) error {
	if !f.ownsGroup(u.Group) {
		return fmt.Errorf("nwb: unit %d: electrode group: %w", u.ID, ErrForeignReference)
	}
	for _, existing := range f.Units {
		if existing.ID == u.ID {
			return fmt.Errorf("nwb: unit %d already exists", u.ID)
		}
	}
	f.Units = append(f.Units, u)
	return nil
}

// AddTemplateUnit appends a row to the template units table.
func (f *File) AddTemplateUnit(u TemplateUnit) error {
	if !f.ownsGroup(u.Group) {
		return fmt.Errorf("nwb: template unit %d: electrode group: %w", u.ID, ErrForeignReference)
	}
	if len(u.Amplitudes) != len(u.SpikeTimes) {
		return fmt.Errorf("nwb: template unit %d: %d amplitudes for %d spikes", u.ID, len(u.Amplitudes), len(u.SpikeTimes))
	}
	f.TemplateUnits = append(f.TemplateUnits, u)
	return nil
}

// ReplaceTemplateUnits swaps the template unit table for units.
func (f *File) ReplaceTemplateUnits(units []TemplateUnit) error {
	previous := f.TemplateUnits
	f.TemplateUnits = nil
	for _, u := range units {
		if err := f.AddTemplateUnit(u); err != nil {
			f.TemplateUnits = previous
			return err
		}
	}
	return nil
}

// AddTrial appends a row to the trials table.
func (f *File) AddTrial(t Trial) error {
	if t.StopTime < t.StartTime {
		return fmt.Errorf("nwb: trial stop %.6f precedes start %.6f", t.StopTime, t.StartTime)
	}
	f.Trials = append(f.Trials, t)
	return nil
}

// AddSpatialSeries appends a series to the Position container, creating it
// on first use.
func (f *File) AddSpatialSeries(container string, s SpatialSeries) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("nwb: spatial series name is required")
	}
	if s.Rate <= 0 {
		return fmt.Errorf("nwb: spatial series %q: rate must be positive", s.Name)
	}
	if f.Position == nil {
		f.Position = &Position{Name: container}
	}
	for _, existing := range f.Position.Series {
		if existing.Name == s.Name {
			return fmt.Errorf("nwb: spatial series %q already exists", s.Name)
		}
	}
	f.Position.Series = append(f.Position.Series, s)
	return nil
}

// AddBehavioralEvents appends an event series to the behavior module.
func (f *File) AddBehavioralEvents(s EventSeries) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("nwb: event series name is required")
	}
	if len(s.Data) != len(s.Timestamps) {
		return fmt.Errorf("nwb: event series %q: %d values for %d timestamps", s.Name, len(s.Data), len(s.Timestamps))
	}
	f.Events = append(f.Events, s)
	return nil
}

// AddAcquisition attaches a raw electrical series. Its electrode indices must
// address rows already in the electrodes table.
func (f *File) AddAcquisition(es *ElectricalSeries) error {
	if es == nil || strings.TrimSpace(es.Name) == "" {
		return errors.New("nwb: electrical series name is required")
	}
	if es.Channels <= 0 || len(es.Data)%es.Channels != 0 {
		return fmt.Errorf("nwb: electrical series %q: %d values do not divide into %d channels", es.Name, len(es.Data), es.Channels)
	}
	for _, idx := range es.Electrodes {
		if idx < 0 || idx >= len(f.Electrodes) {
			return fmt.Errorf("nwb: electrical series %q: electrode index %d out of range", es.Name, idx)
		}
	}
	for _, existing := range f.Acquisition {
		if existing.Name == es.Name {
			return fmt.Errorf("nwb: acquisition %q already exists", es.Name)
		}
	}
	f.Acquisition = append(f.Acquisition, es)
	return nil
}

// SetSubject attaches subject metadata.
func (f *File) SetSubject(s Subject) {
	f.Subject = &s
}

// SetLabMetaData attaches the lab extension block. A block with no fields set
// clears it instead.
func (f *File) SetLabMetaData(m LabMetaData) {
	if m.Empty() {
		f.LabMetaData = nil
		return
	}
	f.LabMetaData = &m
}

// Validate re-checks the reference invariants of the whole container.
func (f *File) Validate() error {
	for _, g := range f.ElectrodeGroups {
		if !slices.Contains(f.Devices, g.Device) {
			return fmt.Errorf("nwb: electrode group %q: device: %w", g.Name, ErrForeignReference)
		}
	}
	for _, e := range f.Electrodes {
		if !f.ownsGroup(e.Group) {
			return fmt.Errorf("nwb: electrode %d: group: %w", e.ID, ErrForeignReference)
		}
	}
	for _, u := range f.Units {
		if !f.ownsGroup(u.Group) {
			return fmt.Errorf("nwb: unit %d: electrode group: %w", u.ID, ErrForeignReference)
		}
	}
	for _, u := range f.TemplateUnits {
		if !f.ownsGroup(u.Group) {
			return fmt.Errorf("nwb: template unit %d: electrode group: %w", u.ID, ErrForeignReference)
		}
	}
	return nil
}

// Summary counts the rows of each table.
type Summary struct {
	Identifier      string
	Electrodes      int
	ElectrodeGroups int
	Units           int
	TemplateUnits   int
	Trials          int
	SpatialSeries   int
	EventSeries     int
	Acquisition     int
	HasSubject      bool
	HasLabMetaData  bool
}

// Summarize reports table sizes.
func (f *File) Summarize() Summary {
	s := Summary{
		Identifier:      f.Session.Identifier,
		Electrodes:      len(f.Electrodes),
		ElectrodeGroups: len(f.ElectrodeGroups),
		Units:           len(f.Units),
		TemplateUnits:   len(f.TemplateUnits),
		Trials:          len(f.Trials),
		EventSeries:     len(f.Events),
		Acquisition:     len(f.Acquisition),
		HasSubject:      f.Subject != nil,
		HasLabMetaData:  f.LabMetaData != nil,
	}
	if f.Position != nil {
		s.SpatialSeries = len(f.Position.Series)
	}
	return s
}
